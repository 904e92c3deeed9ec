package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/pyro/model"
)

type csvOptions struct {
	separator      string
	header         bool
	null           string
	nullEqualsNull bool
}

func (o csvOptions) comma() (rune, error) {
	sep := o.separator
	if sep == `\t` {
		sep = "\t"
	}
	r, size := utf8.DecodeRuneInString(sep)
	if r == utf8.RuneError || size != len(sep) {
		return 0, fmt.Errorf("separator must be a single character, got %q", o.separator)
	}
	return r, nil
}

// loadCSV reads the file at path into a relation named after the file.
func loadCSV(path string, opts csvOptions) (*model.Relation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return readCSV(f, name, opts)
}

func readCSV(r io.Reader, name string, opts csvOptions) (*model.Relation, error) {
	comma, err := opts.comma()
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty input", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	columns := make([]string, len(first))
	for i, v := range first {
		if opts.header {
			columns[i] = v
		} else {
			columns[i] = fmt.Sprintf("column%d", i+1)
		}
	}

	b := model.NewRelationBuilder(name, columns...).WithNullEqualsNull(opts.nullEqualsNull)
	if opts.null != "" {
		b = b.WithNullValue(opts.null)
	}
	if !opts.header {
		b.AddRow(first...)
	}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		b.AddRow(record...)
	}
	return b.Build()
}
