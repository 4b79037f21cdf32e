// 包 misc 包含共用的 CKKS 参数和密文辅助方法
package misc

import (
	"github.com/tuneinsight/lattigo/v4/ckks"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// GetCKKSParams 返回方案预设的 CKKS 安全参数
func GetCKKSParams() ckks.Parameters {
	p, _ := ckks.NewParametersFromLiteral(ckks.PN12QP109)
	return p
}

// NewCiphertext 创建新的密文
func NewCiphertext() *rlwe.Ciphertext {
	params, _ := ckks.NewParametersFromLiteral(ckks.PN12QP109)
	ct := ckks.NewCiphertext(params, 1, params.MaxLevel())
	return ct
}
