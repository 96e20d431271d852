package utils

import (
	"runtime"
)

// GetStack 当前 goroutine 的调用栈
func GetStack() []byte {
	buf := make([]byte, 10240)
	stackSize := runtime.Stack(buf, false)
	return buf[:stackSize]
}
