package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/hraban/opus"
)

const (
	opusMIMEType  = "audio/ogg; codecs=opus"
	opusExtension = "ogg"
	opusPreSkip   = 312
	opusMaxPacket = 4000 // OPUS最大包大小
)

// OpusEncoder OPUS音频编码器, 输出Ogg Opus数据块
type OpusEncoder struct {
	bitrate   int
	timeslice int // 毫秒, 每个数据块包含的音频时长
	logger    *slog.Logger
}

// NewOpusEncoder 创建新的OPUS编码器
func NewOpusEncoder(bitrate, timeslice int, logger *slog.Logger) *OpusEncoder {
	return &OpusEncoder{
		bitrate:   bitrate,
		timeslice: timeslice,
		logger:    logger,
	}
}

func (e *OpusEncoder) MIMEType() string  { return opusMIMEType }
func (e *OpusEncoder) Extension() string { return opusExtension }

// NewStream 创建编码流并立即输出Ogg头
func (e *OpusEncoder) NewStream(format Format, emit func(chunk []byte)) (EncodeStream, error) {
	frameSize := format.FrameSize()
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size: %d", frameSize)
	}

	enc, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(e.bitrate); err != nil {
		return nil, fmt.Errorf("failed to set bitrate: %w", err)
	}

	framesPerChunk := e.timeslice / format.FrameDuration
	if framesPerChunk < 1 {
		framesPerChunk = 1
	}

	s := &opusStream{
		encoder:        enc,
		format:         format,
		frameSize:      frameSize,
		granulePerPkt:  frameSize / format.Channels * 48000 / format.SampleRate,
		framesPerChunk: framesPerChunk,
		ogg:            newOggWriter(rand.Uint32()),
		emit:           emit,
		logger:         e.logger,
	}
	emit(s.ogg.headerPages(format.Channels, format.SampleRate, opusPreSkip))
	return s, nil
}

type opusStream struct {
	encoder        *opus.Encoder
	format         Format
	frameSize      int
	granulePerPkt  int
	framesPerChunk int
	ogg            *oggWriter
	emit           func([]byte)
	logger         *slog.Logger

	pcm      []int16
	buffered int
	closed   bool
}

// Write 编码PCM音频数据, 满一个时间片时输出数据块
func (s *opusStream) Write(pcm []int16) error {
	if s.closed {
		return errors.New("encoder not initialized")
	}
	s.pcm = append(s.pcm, pcm...)
	for len(s.pcm) >= s.frameSize {
		if err := s.encodeFrame(s.pcm[:s.frameSize]); err != nil {
			return err
		}
		s.pcm = s.pcm[s.frameSize:]
	}
	return nil
}

func (s *opusStream) encodeFrame(frame []int16) error {
	data := make([]byte, opusMaxPacket)
	n, err := s.encoder.Encode(frame, data)
	if err != nil {
		return fmt.Errorf("opus encode failed: %w", err)
	}
	if page := s.ogg.add(data[:n], s.granulePerPkt); page != nil {
		s.emit(page)
	}
	s.buffered++
	if s.buffered >= s.framesPerChunk {
		s.emit(s.ogg.flush(0))
		s.buffered = 0
	}
	return nil
}

// Close 用静音补齐最后一帧并输出带EOS标记的最后一页
func (s *opusStream) Close() error {
	if s.closed {
		return nil
	}
	var err error
	if len(s.pcm) > 0 {
		frame := make([]int16, s.frameSize)
		copy(frame, s.pcm)
		s.pcm = nil
		err = s.encodeFrame(frame)
	}
	s.emit(s.ogg.flush(oggFlagEOS))
	s.closed = true
	s.encoder = nil
	return err
}

// decodeOggOpus 使用libopusfile解码Ogg Opus数据, 输出48kHz
func decodeOggOpus(data []byte) (*Decoded, error) {
	channels := opusHeadChannels(data)
	if channels == 0 {
		return nil, fmt.Errorf("%w: missing OpusHead", ErrDecode)
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer stream.Close()

	out := &Decoded{SampleRate: 48000, Samples: make([][]float64, channels)}
	pcm := make([]int16, 5760*channels)
	for {
		n, err := stream.Read(pcm)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: opus decode failed: %v", ErrDecode, err)
		}
		for i := 0; i < n*channels; i++ {
			ch := i % channels
			out.Samples[ch] = append(out.Samples[ch], float64(pcm[i])/32768.0)
		}
	}
	return out, nil
}

func opusHeadChannels(data []byte) int {
	limit := len(data)
	if limit > 512 {
		limit = 512
	}
	i := bytes.Index(data[:limit], []byte("OpusHead"))
	if i < 0 || i+10 > len(data) {
		return 0
	}
	return int(data[i+9])
}
