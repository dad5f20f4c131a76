// audio/interface.go
package audio

import (
	"context"
	"math"
	"time"
)

// Format 描述PCM流的格式
type Format struct {
	SampleRate    int
	Channels      int
	FrameDuration int // 毫秒
}

// FrameSize 返回一帧的样本数(包含所有声道)
func (f Format) FrameSize() int {
	return f.SampleRate * f.Channels * f.FrameDuration / 1000
}

// MicrophoneSource 定义麦克风采集接口
type MicrophoneSource interface {
	// Open 请求设备并返回未启动的音频流。onFrames 在设备线程之外被调用。
	Open(ctx context.Context, format Format, onFrames func(pcm []int16)) (AudioStream, error)
}

// AudioStream 是一个已打开的输入设备句柄
type AudioStream interface {
	Start() error
	// Close 停止并释放设备, 多次调用是安全的
	Close() error
}

// Encoder 创建压缩编码流
type Encoder interface {
	MIMEType() string
	Extension() string
	// NewStream 开始一个编码流。emit 只会在 NewStream、Write 或 Close 内同步调用,
	// 并按产生顺序传出数据块。
	NewStream(format Format, emit func(chunk []byte)) (EncodeStream, error)
}

// EncodeStream 单次录音的编码流
type EncodeStream interface {
	Write(pcm []int16) error
	// Close 刷新剩余数据作为最后一个数据块
	Close() error
}

// Decoded 解码后的音频, Samples[ch][i] 取值范围 [-1, 1]
type Decoded struct {
	SampleRate int
	Samples    [][]float64
}

// Channel 返回指定声道, 不存在时返回nil
func (d *Decoded) Channel(ch int) []float64 {
	if d == nil || ch < 0 || ch >= len(d.Samples) {
		return nil
	}
	return d.Samples[ch]
}

// Duration 返回音频时长
func (d *Decoded) Duration() time.Duration {
	first := d.Channel(0)
	if len(first) == 0 || d.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(first)) * time.Second / time.Duration(d.SampleRate)
}

// Interleaved 转回交错的16位PCM
func (d *Decoded) Interleaved() []int16 {
	if d == nil || len(d.Samples) == 0 {
		return nil
	}
	channels := len(d.Samples)
	frames := len(d.Samples[0])
	out := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := d.Samples[ch][i] * 32767
			v = math.Max(-32768, math.Min(32767, v))
			out[i*channels+ch] = int16(v)
		}
	}
	return out
}

// Decoder 音频解码接口
type Decoder interface {
	Decode(data []byte) (*Decoded, error)
}

// FrequencySource 提供实时频谱快照
type FrequencySource interface {
	BinCount() int
	// FrequencyData 把当前频谱写入dst(长度不足时重新分配)并返回, 每个值在 [0, 255]
	FrequencyData(dst []byte) []byte
}

// MediaElement 音频播放元素
type MediaElement interface {
	// SetSource 绑定一个 SourceTable 引用, 空字符串表示解绑
	SetSource(ref string) error
	Play() error
	Pause() error
	CurrentTime() time.Duration
	Duration() time.Duration
	// OnEnded 注册自然播放结束时的回调, ref为结束时绑定的引用
	OnEnded(fn func(ref string))
	Close() error
}
