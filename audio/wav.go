package audio

import (
	"bytes"
	"encoding/binary"
)

// WavHeader WAV文件头结构
type WavHeader struct {
	RiffMark      [4]byte // "RIFF"
	FileSize      uint32  // 文件总大小-8
	WaveMark      [4]byte // "WAVE"
	FmtMark       [4]byte // "fmt "
	FmtSize       uint32  // fmt chunk大小(16)
	AudioFormat   uint16  // 1=PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample/8
	BlockAlign    uint16  // NumChannels * BitsPerSample/8
	BitsPerSample uint16  // 16
	DataMark      [4]byte // "data"
	DataSize      uint32  // 原始数据大小
}

func newWavHeader(sampleRate, channels, dataSize int) WavHeader {
	header := WavHeader{
		RiffMark:      [4]byte{'R', 'I', 'F', 'F'},
		FileSize:      uint32(36 + dataSize),
		WaveMark:      [4]byte{'W', 'A', 'V', 'E'},
		FmtMark:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1, // PCM
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		BitsPerSample: 16,
		DataMark:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(dataSize),
	}
	header.ByteRate = header.SampleRate * uint32(header.NumChannels) * uint32(header.BitsPerSample) / 8
	header.BlockAlign = header.NumChannels * header.BitsPerSample / 8
	return header
}

// EncodeWAV 把交错的16位PCM封装成完整的WAV文件
func EncodeWAV(pcm []int16, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm)*2)
	header := newWavHeader(sampleRate, channels, len(pcm)*2)
	// bytes.Buffer的写入不会失败
	_ = binary.Write(&buf, binary.LittleEndian, &header)
	_ = binary.Write(&buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}
