// Package corpus loads the documents an index is built from. A document's
// id is its position in the loaded slice.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"

	apperrors "github.com/Adithya-Monish-Kumar-K/champion-search/pkg/errors"
)

// Source produces the raw text of every document in corpus order.
type Source interface {
	Load(ctx context.Context) ([]string, error)
	Name() string
}

// gzipMagic is the two-byte gzip member header.
var gzipMagic = []byte{0x1f, 0x8b}

// File reads a newline-delimited corpus, one document per line. Gzip input
// is detected from its header, so plain text files work as well.
type File struct {
	Path   string
	logger *slog.Logger
}

// NewFile creates a File source for path.
func NewFile(path string) *File {
	return &File{
		Path:   path,
		logger: slog.Default().With("component", "corpus-file"),
	}
}

func (f *File) Name() string {
	return "file:" + f.Path
}

// Load reads every line of the file.
func (f *File) Load(ctx context.Context) ([]string, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w: %w", f.Path, apperrors.ErrCorpusUnavailable, err)
	}
	defer fh.Close()
	docs, err := ReadLines(ctx, fh)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", f.Path, err)
	}
	f.logger.Info("corpus loaded", "path", f.Path, "documents", len(docs))
	return docs, nil
}

// ReadLines decodes r (gzip or plain) into one document per line. Lines have
// no length limit. Trailing whitespace is stripped and invalid UTF-8 is
// replaced rather than rejected.
func ReadLines(ctx context.Context, r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	head, err := br.Peek(len(gzipMagic))
	if err == nil && bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	lines := bufio.NewReaderSize(src, 64*1024)
	docs := make([]string, 0, 1024)
	for {
		line, err := lines.ReadString('\n')
		if len(line) > 0 {
			if len(docs)%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			docs = append(docs, cleanLine(line))
		}
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading lines: %w", err)
		}
	}
}

// Static serves an in-memory corpus.
type Static []string

func (s Static) Name() string { return "static" }

func (s Static) Load(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

func cleanLine(line string) string {
	if !utf8.ValidString(line) {
		line = strings.ToValidUTF8(line, "�")
	}
	return strings.TrimRightFunc(line, unicode.IsSpace)
}
