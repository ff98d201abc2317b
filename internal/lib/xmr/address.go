// Package xmr реализует разбор и построение адресов Monero.
//
// Интегрированный адрес представляет собой базовый адрес кошелька со встроенным 8-байтовым
// платёжным идентификатором. Один кошелёк принимает оплату по многим счетам,
// а каждый платёж однозначно соотносится со своим счётом.
package xmr

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// PaymentIDSize длина короткого платёжного идентификатора.
const PaymentIDSize = 8

const (
	keySize      = 32
	checksumSize = 4
)

// Network сеть Monero, к которой относится адрес.
type Network int

const (
	Mainnet Network = iota
	Testnet
	Stagenet
)

// Kind разновидность адреса.
type Kind int

const (
	Standard Kind = iota
	Integrated
	Subaddress
)

var (
	// ErrInvalidAddress строка не является корректным адресом Monero.
	ErrInvalidAddress = errors.New("invalid monero address")
	// ErrChecksum контрольная сумма адреса не сходится.
	ErrChecksum = errors.New("monero address checksum mismatch")
	// ErrNotIntegrated в адресе нет платёжного идентификатора.
	ErrNotIntegrated = errors.New("address is not integrated")
	// ErrNotStandard интегрированный адрес строится только из стандартного.
	ErrNotStandard = errors.New("base address must be a standard address")
)

type prefix struct {
	network Network
	kind    Kind
}

var netBytes = map[byte]prefix{
	18: {Mainnet, Standard},
	19: {Mainnet, Integrated},
	42: {Mainnet, Subaddress},
	53: {Testnet, Standard},
	54: {Testnet, Integrated},
	63: {Testnet, Subaddress},
	24: {Stagenet, Standard},
	25: {Stagenet, Integrated},
	36: {Stagenet, Subaddress},
}

func netByte(network Network, kind Kind) (byte, bool) {
	for b, p := range netBytes {
		if p.network == network && p.kind == kind {
			return b, true
		}
	}
	return 0, false
}

// Address разобранный адрес Monero.
type Address struct {
	Network   Network
	Kind      Kind
	SpendKey  [keySize]byte
	ViewKey   [keySize]byte
	PaymentID [PaymentIDSize]byte // заполнен только для Integrated
}

func checksum(payload []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(payload)
	return h.Sum(nil)[:checksumSize]
}

// DecodeAddress разбирает адрес и проверяет его контрольную сумму.
func DecodeAddress(s string) (Address, error) {
	const op = "xmr.DecodeAddress"
	var a Address

	raw, err := decodeBase58(s)
	if err != nil {
		return a, fmt.Errorf("%s: %w: %w", op, ErrInvalidAddress, err)
	}
	if len(raw) < 1+2*keySize+checksumSize {
		return a, fmt.Errorf("%s: %w: too short", op, ErrInvalidAddress)
	}
	p, ok := netBytes[raw[0]]
	if !ok {
		return a, fmt.Errorf("%s: %w: unknown network byte %d", op, ErrInvalidAddress, raw[0])
	}

	want := 1 + 2*keySize + checksumSize
	if p.kind == Integrated {
		want += PaymentIDSize
	}
	if len(raw) != want {
		return a, fmt.Errorf("%s: %w: unexpected length %d", op, ErrInvalidAddress, len(raw))
	}

	body, sum := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	if !bytes.Equal(checksum(body), sum) {
		return a, fmt.Errorf("%s: %w", op, ErrChecksum)
	}

	a.Network, a.Kind = p.network, p.kind
	copy(a.SpendKey[:], body[1:1+keySize])
	copy(a.ViewKey[:], body[1+keySize:1+2*keySize])
	if a.Kind == Integrated {
		copy(a.PaymentID[:], body[1+2*keySize:])
	}
	return a, nil
}

// String кодирует адрес обратно в base58 с контрольной суммой.
func (a Address) String() string {
	b, ok := netByte(a.Network, a.Kind)
	if !ok {
		return ""
	}
	body := make([]byte, 0, 1+2*keySize+PaymentIDSize+checksumSize)
	body = append(body, b)
	body = append(body, a.SpendKey[:]...)
	body = append(body, a.ViewKey[:]...)
	if a.Kind == Integrated {
		body = append(body, a.PaymentID[:]...)
	}
	body = append(body, checksum(body)...)
	return encodeBase58(body)
}

// WithPaymentID возвращает интегрированный адрес на тех же ключах.
func (a Address) WithPaymentID(id [PaymentIDSize]byte) (Address, error) {
	if a.Kind != Standard {
		return a, ErrNotStandard
	}
	a.Kind = Integrated
	a.PaymentID = id
	return a, nil
}

// Deriver строит интегрированные адреса для одного базового кошелька.
// Базовый адрес разбирается один раз, сам Deriver не имеет изменяемого состояния.
type Deriver struct {
	base Address
}

// NewDeriver разбирает базовый адрес кошелька.
func NewDeriver(baseAddress string) (*Deriver, error) {
	const op = "xmr.NewDeriver"
	base, err := DecodeAddress(baseAddress)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if base.Kind != Standard {
		return nil, fmt.Errorf("%s: %w", op, ErrNotStandard)
	}
	return &Deriver{base: base}, nil
}

// Derive возвращает интегрированный адрес для платёжного идентификатора.
func (d *Deriver) Derive(paymentID [PaymentIDSize]byte) string {
	a, _ := d.base.WithPaymentID(paymentID)
	return a.String()
}

// Derive строит интегрированный адрес из базового адреса и платёжного идентификатора.
func Derive(baseAddress string, paymentID [PaymentIDSize]byte) (string, error) {
	d, err := NewDeriver(baseAddress)
	if err != nil {
		return "", err
	}
	return d.Derive(paymentID), nil
}

// ExtractPaymentID достаёт платёжный идентификатор из интегрированного адреса.
func ExtractPaymentID(address string) ([PaymentIDSize]byte, error) {
	a, err := DecodeAddress(address)
	if err != nil {
		return [PaymentIDSize]byte{}, err
	}
	if a.Kind != Integrated {
		return [PaymentIDSize]byte{}, ErrNotIntegrated
	}
	return a.PaymentID, nil
}
