package player

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
)

type decoder func(io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error)

func decodeWav(r io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(r) }
func decodeMP3(r io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(r) }
func decodeFLAC(r io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	return flac.Decode(r)
}
func decodeVorbis(r io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	return vorbis.Decode(r)
}

var byContentType = map[string]decoder{
	"audio/wav":       decodeWav,
	"audio/wave":      decodeWav,
	"audio/x-wav":     decodeWav,
	"audio/vnd.wave":  decodeWav,
	"audio/mpeg":      decodeMP3,
	"audio/mp3":       decodeMP3,
	"audio/flac":      decodeFLAC,
	"audio/x-flac":    decodeFLAC,
	"audio/ogg":       decodeVorbis,
	"audio/vorbis":    decodeVorbis,
	"application/ogg": decodeVorbis,
}

var byExtension = map[string]decoder{
	".wav":  decodeWav,
	".wave": decodeWav,
	".mp3":  decodeMP3,
	".flac": decodeFLAC,
	".ogg":  decodeVorbis,
	".oga":  decodeVorbis,
}

var byMagic = []struct {
	prefix []byte
	decode decoder
}{
	{[]byte("RIFF"), decodeWav},
	{[]byte("fLaC"), decodeFLAC},
	{[]byte("OggS"), decodeVorbis},
	{[]byte("ID3"), decodeMP3},
	{[]byte{0xff, 0xfb}, decodeMP3},
	{[]byte{0xff, 0xf3}, decodeMP3},
	{[]byte{0xff, 0xf2}, decodeMP3},
}

// pick chooses a decoder by content type, then by extension, then by the
// first bytes of the body. A declared audio type with no decoder is
// unsupported; a body nothing recognises is a decode failure.
func pick(m *Media) (decoder, error) {
	if d, ok := byContentType[m.ContentType]; ok {
		return d, nil
	}
	if d, ok := byExtension[strings.ToLower(path.Ext(m.Name))]; ok {
		return d, nil
	}
	if strings.HasPrefix(m.ContentType, "audio/") {
		return nil, mediaError(ReasonUnsupported, errors.Errorf("no decoder for %s", m.ContentType))
	}

	head := make([]byte, 4)
	n, err := io.ReadFull(m.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, mediaError(ReasonNetwork, errors.Wrap(err, "read header"))
	}
	if _, err := m.Body.Seek(0, io.SeekStart); err != nil {
		return nil, mediaError(ReasonNetwork, errors.Wrap(err, "rewind"))
	}
	for _, magic := range byMagic {
		if bytes.HasPrefix(head[:n], magic.prefix) {
			return magic.decode, nil
		}
	}
	return nil, mediaError(ReasonDecode, errors.Errorf("%s: not recognisable audio (content type %q)", m.Name, m.ContentType))
}

// decode opens the media with the matching decoder. The body is closed on
// failure; on success it belongs to the returned streamer.
func decode(m *Media) (beep.StreamSeekCloser, beep.Format, error) {
	d, err := pick(m)
	if err != nil {
		m.Body.Close()
		return nil, beep.Format{}, err
	}
	s, format, err := d(m.Body)
	if err != nil {
		m.Body.Close()
		return nil, beep.Format{}, mediaError(ReasonDecode, errors.Wrap(err, m.Name))
	}
	if format.SampleRate <= 0 || format.NumChannels <= 0 {
		s.Close()
		return nil, beep.Format{}, mediaError(ReasonDecode, errors.Errorf("%s: bad format %+v", m.Name, format))
	}
	return s, format, nil
}
