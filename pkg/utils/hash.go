package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// CalculateMD5 computes the MD5 hash of a byte slice.
func CalculateMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// QueryFingerprint 问题文本的缓存键。首尾空白和连续空白不影响结果，大小写保留
func QueryFingerprint(query string) string {
	return CalculateMD5([]byte(strings.Join(strings.Fields(query), " ")))
}
