package utils

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewULID 生成按时间有序的唯一ID
func NewULID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
