package hub

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin = 10000
	codeMax = 99999
)

// GenerateCode draws a 5 digit room code uniformly from [10000, 99999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%05d", n.Int64()+codeMin), nil
}
