package audio

import (
	"bytes"
	"encoding/binary"
)

const (
	oggFlagBOS = 0x02
	oggFlagEOS = 0x04

	oggMaxSegments = 255
)

var oggCRCTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func oggCRC(b []byte) uint32 {
	var crc uint32
	for _, v := range b {
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^v]
	}
	return crc
}

// oggWriter 把Opus包封装成Ogg页, 每页是一个完整可拼接的数据块
type oggWriter struct {
	serial   uint32
	sequence uint32
	granule  int64

	segments []byte
	body     bytes.Buffer
}

func newOggWriter(serial uint32) *oggWriter {
	return &oggWriter{serial: serial}
}

// headerPages 返回OpusHead和OpusTags两页
func (w *oggWriter) headerPages(channels, inputRate int, preSkip uint16) []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = byte(channels)
	binary.LittleEndian.PutUint16(head[10:], preSkip)
	binary.LittleEndian.PutUint32(head[12:], uint32(inputRate))
	// output gain 0, mapping family 0

	vendor := "voxtape"
	tags := make([]byte, 0, 8+4+len(vendor)+4)
	tags = append(tags, "OpusTags"...)
	tags = binary.LittleEndian.AppendUint32(tags, uint32(len(vendor)))
	tags = append(tags, vendor...)
	tags = binary.LittleEndian.AppendUint32(tags, 0)

	var out bytes.Buffer
	out.Write(w.page(oggFlagBOS, 0, lacing(len(head)), head))
	out.Write(w.page(0, 0, lacing(len(tags)), tags))
	// 音频页的granule包含pre-skip
	w.granule = int64(preSkip)
	return out.Bytes()
}

// add 追加一个音频包, samples 为48kHz下该包的样本数。页满时返回该页。
func (w *oggWriter) add(packet []byte, samples int) []byte {
	var flushed []byte
	lace := lacing(len(packet))
	if len(w.segments)+len(lace) > oggMaxSegments {
		flushed = w.flush(0)
	}
	w.segments = append(w.segments, lace...)
	w.body.Write(packet)
	w.granule += int64(samples)
	return flushed
}

func (w *oggWriter) pending() bool {
	return len(w.segments) > 0
}

// flush 把缓存的包写成一页
func (w *oggWriter) flush(flags byte) []byte {
	p := w.page(flags, w.granule, w.segments, w.body.Bytes())
	w.segments = w.segments[:0]
	w.body.Reset()
	return p
}

func (w *oggWriter) page(flags byte, granule int64, segments, body []byte) []byte {
	buf := make([]byte, 27+len(segments)+len(body))
	copy(buf, "OggS")
	buf[4] = 0
	buf[5] = flags
	binary.LittleEndian.PutUint64(buf[6:], uint64(granule))
	binary.LittleEndian.PutUint32(buf[14:], w.serial)
	binary.LittleEndian.PutUint32(buf[18:], w.sequence)
	buf[26] = byte(len(segments))
	copy(buf[27:], segments)
	copy(buf[27+len(segments):], body)
	binary.LittleEndian.PutUint32(buf[22:], oggCRC(buf))
	w.sequence++
	return buf
}

func lacing(n int) []byte {
	lace := make([]byte, 0, n/255+1)
	for n >= 255 {
		lace = append(lace, 255)
		n -= 255
	}
	return append(lace, byte(n))
}
