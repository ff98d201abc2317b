package xmr

import (
	"errors"
	"math/bits"
	"strings"
)

// Вариант base58 из Monero: данные кодируются блоками по 8 байт,
// каждый полный блок даёт ровно 11 символов.
const (
	alphabet             = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	fullBlockSize        = 8
	fullEncodedBlockSize = 11
)

var encodedBlockSizes = [fullBlockSize + 1]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

var errInvalidBase58 = errors.New("invalid base58 string")

func encodeBlock(sb *strings.Builder, block []byte) {
	var num uint64
	for _, b := range block {
		num = num<<8 | uint64(b)
	}
	size := encodedBlockSizes[len(block)]
	out := make([]byte, size)
	for i := range out {
		out[i] = alphabet[0]
	}
	for i := size - 1; num > 0; i-- {
		out[i] = alphabet[num%58]
		num /= 58
	}
	sb.Write(out)
}

func decodeBlock(dst []byte, block string) error {
	var num uint64
	for i := 0; i < len(block); i++ {
		digit := strings.IndexByte(alphabet, block[i])
		if digit < 0 {
			return errInvalidBase58
		}
		hi, lo := bits.Mul64(num, 58)
		if hi != 0 {
			return errInvalidBase58
		}
		var carry uint64
		num, carry = bits.Add64(lo, uint64(digit), 0)
		if carry != 0 {
			return errInvalidBase58
		}
	}
	if len(dst) < fullBlockSize && num>>(8*uint(len(dst))) != 0 {
		return errInvalidBase58
	}
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(num)
		num >>= 8
	}
	return nil
}

func encodeBase58(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data)/fullBlockSize*fullEncodedBlockSize + fullEncodedBlockSize)
	for len(data) >= fullBlockSize {
		encodeBlock(&sb, data[:fullBlockSize])
		data = data[fullBlockSize:]
	}
	if len(data) > 0 {
		encodeBlock(&sb, data)
	}
	return sb.String()
}

func decodeBase58(s string) ([]byte, error) {
	full := len(s) / fullEncodedBlockSize
	lastEncoded := len(s) % fullEncodedBlockSize
	lastSize := -1
	for size, encoded := range encodedBlockSizes {
		if encoded == lastEncoded {
			lastSize = size
			break
		}
	}
	if lastSize < 0 {
		return nil, errInvalidBase58
	}

	out := make([]byte, full*fullBlockSize+lastSize)
	for i := 0; i < full; i++ {
		block := s[i*fullEncodedBlockSize : (i+1)*fullEncodedBlockSize]
		if err := decodeBlock(out[i*fullBlockSize:(i+1)*fullBlockSize], block); err != nil {
			return nil, err
		}
	}
	if lastSize > 0 {
		if err := decodeBlock(out[full*fullBlockSize:], s[full*fullEncodedBlockSize:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
