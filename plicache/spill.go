package plicache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path"

	"github.com/hupe1980/pyro/blobstore"
	"github.com/hupe1980/pyro/internal/compress"
	"github.com/hupe1980/pyro/internal/resource"
	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/pli"
)

// spillTier writes evicted PLIs to a blob store. A nil tier contains nothing.
type spillTier struct {
	store  blobstore.Store
	prefix string
	codec  compress.Type
	rc     *resource.Controller
	keys   map[string]struct{}
}

func newSpillTier(store blobstore.Store, prefix string, codec compress.Type, rc *resource.Controller) *spillTier {
	return &spillTier{
		store:  store,
		prefix: prefix,
		codec:  codec,
		rc:     rc,
		keys:   make(map[string]struct{}),
	}
}

func (s *spillTier) name(v model.Vertical) string {
	return path.Join(s.prefix, hex.EncodeToString([]byte(v.Key()))+".pli")
}

func (s *spillTier) contains(v model.Vertical) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[v.Key()]
	return ok
}

func (s *spillTier) write(ctx context.Context, v model.Vertical, p *pli.PLI) (int, error) {
	data, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	block, err := compress.Encode(data, s.codec)
	if err != nil {
		return 0, err
	}
	if err := s.rc.WaitIO(ctx, len(block)); err != nil {
		return 0, err
	}
	if err := s.store.Put(ctx, s.name(v), block); err != nil {
		return 0, fmt.Errorf("plicache: spill %s: %w", v, err)
	}
	s.keys[v.Key()] = struct{}{}
	return len(block), nil
}

func (s *spillTier) restore(ctx context.Context, v model.Vertical) (*pli.PLI, int, error) {
	block, err := s.store.Get(ctx, s.name(v))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			delete(s.keys, v.Key())
		}
		return nil, 0, fmt.Errorf("plicache: restore %s: %w", v, err)
	}
	if err := s.rc.WaitIO(ctx, len(block)); err != nil {
		return nil, 0, err
	}
	data, err := compress.Decode(block, s.codec)
	if err != nil {
		return nil, 0, fmt.Errorf("plicache: restore %s: %w", v, err)
	}
	p, err := pli.Unmarshal(data)
	if err != nil {
		return nil, 0, fmt.Errorf("plicache: restore %s: %w", v, err)
	}
	return p, len(block), nil
}

func (s *spillTier) clear(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	for key := range s.keys {
		name := path.Join(s.prefix, hex.EncodeToString([]byte(key))+".pli")
		if err := s.store.Delete(ctx, name); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			errs = append(errs, err)
		}
		delete(s.keys, key)
	}
	return errors.Join(errs...)
}
