// Package textenc guesses the character encoding of raw text and decodes it
// to UTF-8.
package textenc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

const (
	// sampleSize bounds how much of a document is scored per candidate.
	sampleSize = 64 * 1024

	// DefaultMinConfidence is the validation threshold used when none is configured.
	DefaultMinConfidence = 0.6
)

// ErrUnsupportedEncoding is returned by Validate when no candidate encoding
// reaches the required confidence.
var ErrUnsupportedEncoding = errors.New("textenc: unsupported encoding")

// Result is a best-guess encoding for a byte buffer.
type Result struct {
	Name       string
	Encoding   encoding.Encoding // nil means UTF-8
	Confidence float64           // 0..1
}

type candidate struct {
	name    string
	enc     encoding.Encoding
	scripts []*unicode.RangeTable
}

var cjkPunct = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3000, Hi: 0x303f, Stride: 1}, // CJK symbols and punctuation
		{Lo: 0xff00, Hi: 0xffef, Stride: 1}, // halfwidth and fullwidth forms
	},
}

// Legacy multi-byte candidates in preference order. Ties keep the earlier one.
var candidates = []candidate{
	{name: "GB18030", enc: simplifiedchinese.GB18030, scripts: []*unicode.RangeTable{unicode.Han, cjkPunct}},
	{name: "Big5", enc: traditionalchinese.Big5, scripts: []*unicode.RangeTable{unicode.Han, cjkPunct}},
	{name: "Shift_JIS", enc: japanese.ShiftJIS, scripts: []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana, cjkPunct}},
	{name: "EUC-JP", enc: japanese.EUCJP, scripts: []*unicode.RangeTable{unicode.Han, unicode.Hiragana, unicode.Katakana, cjkPunct}},
	{name: "EUC-KR", enc: korean.EUCKR, scripts: []*unicode.RangeTable{unicode.Hangul, unicode.Han, cjkPunct}},
}

// Detect returns the most plausible encoding for data. It never fails; a
// Confidence of 0 means nothing looked like text.
func Detect(data []byte) Result {
	if len(data) == 0 {
		return Result{Name: "UTF-8", Confidence: 1}
	}
	if r, ok := detectBOM(data); ok {
		return r
	}

	sample := data
	if len(sample) > sampleSize {
		sample = trimToRuneBoundary(sample[:sampleSize])
	}

	if bytes.IndexByte(sample, 0x00) != -1 {
		return Result{Name: "binary", Confidence: 0}
	}
	if utf8.Valid(sample) {
		return Result{Name: "UTF-8", Confidence: 1}
	}

	best := Result{Name: "UTF-8", Confidence: score(strings.ToValidUTF8(string(sample), "\uFFFD"), nil)}
	for _, c := range candidates {
		decoded, err := c.enc.NewDecoder().Bytes(sample)
		if err != nil {
			continue
		}
		conf := score(string(decoded), c.scripts)
		if conf > best.Confidence {
			best = Result{Name: c.name, Encoding: c.enc, Confidence: conf}
		}
	}
	return best
}

// Validate is the ingestion-time check: it returns the detected encoding, or
// ErrUnsupportedEncoding if the confidence is below minConfidence.
func Validate(data []byte, minConfidence float64) (Result, error) {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	r := Detect(data)
	if r.Confidence < minConfidence {
		return r, fmt.Errorf("%w: best guess %s at %.2f, need %.2f", ErrUnsupportedEncoding, r.Name, r.Confidence, minConfidence)
	}
	return r, nil
}

// Decode converts data to NFC-normalised UTF-8 using the best-guess encoding.
// Undecodable sequences become U+FFFD; Decode never fails.
func Decode(data []byte) string {
	return DecodeWith(data, Detect(data))
}

// DecodeWith decodes data with a previously detected Result.
func DecodeWith(data []byte, r Result) string {
	data = stripBOM(data, r.Name)

	var s string
	if r.Encoding == nil {
		s = strings.ToValidUTF8(string(data), "\uFFFD")
	} else {
		out, err := r.Encoding.NewDecoder().Bytes(data)
		if err != nil {
			s = strings.ToValidUTF8(string(data), "\uFFFD")
		} else {
			s = string(out)
		}
	}
	return norm.NFC.String(s)
}

func detectBOM(data []byte) (Result, bool) {
	switch {
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return Result{Name: "UTF-8", Confidence: 1}, true
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return Result{Name: "UTF-16LE", Encoding: xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM), Confidence: 1}, true
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return Result{Name: "UTF-16BE", Encoding: xunicode.UTF16(xunicode.BigEndian, xunicode.ExpectBOM), Confidence: 1}, true
	}
	return Result{}, false
}

func stripBOM(data []byte, name string) []byte {
	if name == "UTF-8" && len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// trimToRuneBoundary drops a trailing UTF-8 sequence that the sample cut
// left incomplete. A complete final character is kept.
func trimToRuneBoundary(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i]
		}
		return b
	}
	return b
}

// score rates decoded text in [0,1]: the share of runes that are plausible
// text, weighted by how much of the non-ASCII content falls in the expected
// scripts.
func score(s string, scripts []*unicode.RangeTable) float64 {
	var total, bad, nonASCII, inScript int
	for _, r := range s {
		total++
		switch {
		case r == utf8.RuneError:
			bad++
		case r < 0x20 && r != '\t' && r != '\n' && r != '\r' && r != '\f':
			bad++
		case unicode.Is(unicode.Co, r):
			bad++
		case r >= 0x80:
			nonASCII++
			if scripts == nil || unicode.In(r, scripts...) {
				inScript++
			}
		}
	}
	if total == 0 {
		return 1
	}
	valid := 1 - float64(bad)/float64(total)
	if nonASCII == 0 {
		return valid
	}
	return valid * (0.5 + 0.5*float64(inScript)/float64(nonASCII))
}
