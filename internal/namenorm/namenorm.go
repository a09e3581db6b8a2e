// Package namenorm canonicalizes file names and paths so comparisons are
// stable across platforms and encodings. Visually identical names with
// different code-point sequences (NFC vs NFD, common on macOS) compare
// equal after normalization.
package namenorm

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Split returns the normalized base name and extension of a raw file name.
// The base is the name with its final extension stripped, lower-cased and
// NFC-normalized. The extension is lower-cased without the leading dot.
func Split(name string) (base, ext string) {
	e := filepath.Ext(name)
	base = norm.NFC.String(strings.ToLower(strings.TrimSuffix(name, e)))
	ext = strings.ToLower(strings.TrimPrefix(e, "."))
	return base, ext
}

// Name returns the normalized base name of a raw file name.
func Name(name string) string {
	base, _ := Split(name)
	return base
}

// Ext returns the normalized extension of a raw file name.
func Ext(name string) string {
	_, ext := Split(name)
	return ext
}

// Keyword normalizes a filter keyword the same way Split normalizes base
// names, so substring matching compares like with like.
func Keyword(kw string) string {
	return norm.NFC.String(strings.ToLower(kw))
}

// NFCString applies canonical Unicode normalization without any other
// transformation. Used when re-keying persisted paths.
func NFCString(s string) string {
	return norm.NFC.String(s)
}

// Path returns the absolute, NFC-normalized form of p. Used as the identity
// key for index entries.
func Path(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return norm.NFC.String(abs), nil
}
