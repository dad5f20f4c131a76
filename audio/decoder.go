package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Container 识别出的音频容器类型
type Container string

const (
	ContainerUnknown Container = "unknown"
	ContainerWAV     Container = "wav"
	ContainerMP3     Container = "mp3"
	ContainerOgg     Container = "ogg"
)

// Sniff 根据文件头识别容器
func Sniff(data []byte) Container {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ContainerWAV
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return ContainerOgg
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ContainerMP3
	}
	return ContainerUnknown
}

// FormatDecoder 按容器类型分派的解码器
type FormatDecoder struct {
	logger *slog.Logger
}

// NewDecoder 创建解码器
func NewDecoder(logger *slog.Logger) *FormatDecoder {
	return &FormatDecoder{logger: logger}
}

// Decode 解码完整的音频文件
func (d *FormatDecoder) Decode(data []byte) (*Decoded, error) {
	container := Sniff(data)
	d.logger.Debug("Decoding audio", "container", container, "size", len(data))

	switch container {
	case ContainerWAV:
		s, format, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return drain(s, format)
	case ContainerMP3:
		s, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return drain(s, format)
	case ContainerOgg:
		return decodeOggOpus(data)
	default:
		return nil, fmt.Errorf("%w: unrecognized container", ErrDecode)
	}
}

// drain 读出beep流的全部样本, beep总是输出双声道, 单声道文件两个声道相同
func drain(s beep.StreamSeekCloser, format beep.Format) (*Decoded, error) {
	defer s.Close()

	channels := format.NumChannels
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}

	out := &Decoded{SampleRate: int(format.SampleRate), Samples: make([][]float64, channels)}
	if n := s.Len(); n > 0 {
		for ch := range out.Samples {
			out.Samples[ch] = make([]float64, 0, n)
		}
	}

	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				out.Samples[ch] = append(out.Samples[ch], buf[i][ch])
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}
