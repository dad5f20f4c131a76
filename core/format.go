package core

import (
	"fmt"
	"math"
)

// Unlimited 表示没有剩余额度限制
var Unlimited = math.Inf(1)

// QuotaWarning 剩余额度低于该秒数时提示
const QuotaWarning = 60

// FormatClock 把秒数格式化为 MM:SS
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatSize 以 KB 或 MB 显示字节数
func FormatSize(bytes int) string {
	const kb = 1024
	const mb = 1024 * 1024
	if bytes >= mb {
		return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
	}
	return fmt.Sprintf("%.2f KB", float64(bytes)/kb)
}

// QuotaLow 剩余额度是否需要提示
func QuotaLow(remaining float64) bool {
	return remaining > 0 && remaining < QuotaWarning
}
