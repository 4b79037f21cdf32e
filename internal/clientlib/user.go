package clientlib

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"github.com/CamberLoid/Warikan/internal/serverlib"
	"github.com/CamberLoid/Warikan/internal/users"
)

// 继承 users.User
type User struct {
	// 集成
	users.User

	// 服务端认证，现阶段不考虑
	OAuth string
}

// --- 签名部分 ---

// SignCTProof 对密文和组标识符签发合法性证明
// 签名消息由 serverlib.CTProofMessage 约定，
// 将密文绑定到提交者与目标组
func (u User) SignCTProof(ctBytes []byte, groupID string) (proof []byte, err error) {
	// 检查是否可以签名
	if err = u.checkSignAvailability(); err != nil {
		return nil, err
	}

	return signByte(serverlib.CTProofMessage(ctBytes, groupID), u.UserECDSAKeyChain[0].ECDSAPrivateKey)
}

// signByte() 是一个 Low-level 签名方法
func signByte(msg []byte, key *ecdsa.PrivateKey) (sig []byte, e error) {
	hash := sha256.Sum256(msg)
	sig, e = ecdsa.SignASN1(rand.Reader, key, hash[:])

	return
}

// checkSignAvailability() 检查是否可以签名
func (u User) checkSignAvailability() (e error) {
	if u.UserECDSAKeyChain == nil {
		return errors.New("no ECDSA KeyChain found")
	}

	if u.UserECDSAKeyChain[0].ECDSAPrivateKey == nil {
		return errors.New("no ECDSA private key found")
	}
	return nil
}

// Low-level 验证签名方法
func (u User) VerifySignature(payload []byte, sig []byte) (bool, error) {
	if u.UserECDSAKeyChain == nil {
		return false, errors.New("no ECDSA KeyChain found")
	}
	hash := sha256.Sum256(payload)
	return ecdsa.VerifyASN1(u.UserECDSAKeyChain[0].ECDSAPublicKey, hash[:], sig), nil
}
