package profile

import (
	"bufio"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var gzipMagic = []byte{0x1f, 0x8b}

// Decode reads a JSON encoded profile, gzip compressed or not.
func Decode(r io.Reader) (*Profile, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(gzipMagic)); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		return decode(gr)
	}
	return decode(br)
}

func decode(r io.Reader) (*Profile, error) {
	var p Profile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Encode writes the profile as JSON.
func Encode(w io.Writer, p *Profile) error {
	return json.NewEncoder(w).Encode(p)
}

// EncodeCompressed writes the profile as gzip compressed JSON.
func EncodeCompressed(w io.Writer, p *Profile) error {
	gw := gzip.NewWriter(w)
	if err := Encode(gw, p); err != nil {
		_ = gw.Close()
		return err
	}
	return gw.Close()
}

func OpenFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile writes the profile to path, compressing it if the path has
// a .gz extension.
func WriteFile(path string, p *Profile) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if strings.HasSuffix(path, ".gz") {
		err = EncodeCompressed(w, p)
	} else {
		err = Encode(w, p)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}
