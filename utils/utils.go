package utils

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	timeFormat = "2006/01/02 15:04:05"
)

var logger = NewLogger("utils")

var bufPool = &sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// GetBuf gets a *bytes.Buffer from pool
func GetBuf() *bytes.Buffer {
	result := bufPool.Get().(*bytes.Buffer)
	result.Reset()
	return result
}

// ReturnBuf returns a *bytes.Buffer to Pool once you don't need it
func ReturnBuf(buf *bytes.Buffer) {
	bufPool.Put(buf)
}

// AccessCheck checks whether the file or directory exists
func AccessCheck(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("Not found %s or permision denied", err)
	}
	return nil
}

// ParseIPPort parse IP:Port format sring
func ParseIPPort(ipPort string) (net.IP, int) {
	s := strings.Split(ipPort, ":")
	if len(s) != 2 {
		return nil, 0
	}

	ip := net.ParseIP(s[0])
	if ip == nil || ip.To4() == nil {
		return nil, 0
	}

	port, err := strconv.Atoi(s[1])
	if err != nil || port <= 0 || port > 65535 {
		return nil, 0
	}

	return ip, port
}

// Timestamp returns the wallclock in milliseconds used by gossip records
func Timestamp() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// ToHex returns the upper case hexadecimal encoding string
func ToHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// FromHex returns the bytes represented by the hexadecimal string s
func FromHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// TimeToString returns a textual representation of the time;
// it accepts int64 (unix seconds), uint64 (wallclock milliseconds) or time.Time
func TimeToString(t interface{}) string {
	switch v := t.(type) {
	case int64:
		return time.Unix(v, 0).Format(timeFormat)
	case uint64:
		return time.Unix(0, int64(v)*int64(time.Millisecond)).Format(timeFormat)
	case time.Time:
		return v.Format(timeFormat)
	}

	logger.Error("invalid call to TimeToString (%v)\n", t)
	return ""
}
