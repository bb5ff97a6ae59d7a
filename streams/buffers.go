package streams

import "github.com/faiface/beep"

// TruncateHead drops the first `samples` frames of the buffer
func TruncateHead(buf *beep.Buffer, samples int) *beep.Buffer {
	truncated := beep.NewBuffer(buf.Format())
	if buf.Len() < samples {
		return truncated
	}
	truncated.Append(buf.Streamer(samples, buf.Len()))
	return truncated
}
