// 包 key 包含了方案中用到的各种密码学密钥的生成与序列化
package key

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v4/ckks"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

var (
	// 预设的 CKKS 安全参数
	params, _ = ckks.NewParametersFromLiteral(ckks.PN12QP109)
)

type CKKSKeyChain struct {
	Identifier     uuid.UUID
	CKKSPrivateKey *rlwe.SecretKey
	CKKSPublicKey  *rlwe.PublicKey
}

type ECDSAKeyChain struct {
	Identifier      uuid.UUID
	ECDSAPrivateKey *ecdsa.PrivateKey
	ECDSAPublicKey  *ecdsa.PublicKey
}

// KeyChain 是预言机和用户共用的密钥链组合：
// CKKS 部分负责密文，ECDSA 部分负责签名/证明
type KeyChain struct {
	CKKSKeyChain  CKKSKeyChain
	ECDSAKeyChain ECDSAKeyChain
}

// GenECDSAKeyChain 生成一条新的签名密钥链
// 方案中使用 P-256 作为曲线参数
func GenECDSAKeyChain() (kc ECDSAKeyChain, err error) {
	kc.Identifier = uuid.New()
	kc.ECDSAPrivateKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return
	}
	kc.ECDSAPublicKey = &kc.ECDSAPrivateKey.PublicKey
	return
}

// GenCKKSKeyChain 生成一条新的 CKKS 密钥链
func GenCKKSKeyChain() (kc CKKSKeyChain) {
	keygen := ckks.NewKeyGenerator(params)
	kc.Identifier = uuid.New()
	kc.CKKSPrivateKey = keygen.GenSecretKey()
	kc.CKKSPublicKey = keygen.GenPublicKey(kc.CKKSPrivateKey)
	return
}

// GenKeyChain 同时生成 CKKS 和 ECDSA 两条密钥链
func GenKeyChain() (kc KeyChain, err error) {
	kc.CKKSKeyChain = GenCKKSKeyChain()
	kc.ECDSAKeyChain, err = GenECDSAKeyChain()
	return
}
