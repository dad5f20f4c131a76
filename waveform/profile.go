package waveform

// Profile 固定长度的振幅序列, 每个值是一段连续样本绝对值的均值
type Profile []float64

// Resample 按 floor(i/n*len) 取样到n个值, 长度相同时原样返回
func (p Profile) Resample(n int) Profile {
	if n <= 0 || len(p) == 0 {
		return nil
	}
	if n == len(p) {
		return p
	}
	out := make(Profile, n)
	for i := range out {
		out[i] = p[sourceIndex(i, n, len(p))]
	}
	return out
}

// Peak 返回最大值
func (p Profile) Peak() float64 {
	peak := 0.0
	for _, v := range p {
		if v > peak {
			peak = v
		}
	}
	return peak
}

func sourceIndex(i, bars, length int) int {
	idx := i * length / bars
	if idx >= length {
		idx = length - 1
	}
	return idx
}
