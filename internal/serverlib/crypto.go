package serverlib

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/CamberLoid/Warikan/internal/group"
	"github.com/CamberLoid/Warikan/internal/key"
)

// 域分隔前缀。证明和侧签名都先拼前缀再做 SHA-256，
// 避免密文证明和解密证明的签名互相冒用
const (
	CTProofPrefix     = "WarikanCT"
	AttestationPrefix = "WarikanDecrypt"
)

// --- 密文句柄部分 ---

// ComputeCTHandle 计算密文句柄，
// 即序列化密文的 SHA-256 摘要（hex 编码）
func ComputeCTHandle(ctBytes []byte) string {
	digest := sha256.Sum256(ctBytes)
	return hex.EncodeToString(digest[:])
}

// --- 密文摄取验证部分 ---

// CTProofMessage 构造密文合法性证明的待签消息，
// 将密文和组标识符绑定在一起
func CTProofMessage(ctBytes []byte, groupID string) (msg []byte) {
	msg = append(msg, []byte(CTProofPrefix)...)
	msg = append(msg, ctBytes...)
	msg = append(msg, []byte(groupID)...)
	return
}

// ValidateExternalCiphertext 验证外部提交的密文与其合法性证明
// 检查两件事：密文字节能反序列化为合法的 rlwe.Ciphertext；
// 证明是提交者对 CTProofMessage 的有效签名
// 任一不满足返回 group.ErrInvalidCiphertext
func ValidateExternalCiphertext(ctBytes, proof []byte, groupID string, pk *ecdsa.PublicKey) (handle string, err error) {
	if len(ctBytes) == 0 {
		return "", group.ErrInvalidCiphertext
	}
	if _, err = key.UnmarshalCKKSCipherText(ctBytes); err != nil {
		return "", group.ErrInvalidCiphertext
	}
	if !ValidateSignatureBase(CTProofMessage(ctBytes, groupID), proof, pk) {
		return "", group.ErrInvalidCiphertext
	}
	return ComputeCTHandle(ctBytes), nil
}

// --- 解密证明验证部分 ---

// AttestationMessage 构造预言机解密证明的待签消息：
// 前缀 || 句柄序列 || 对应的明文字序列，顺序即绑定关系
func AttestationMessage(handles []string, clearValueWords [][]byte) (msg []byte) {
	msg = append(msg, []byte(AttestationPrefix)...)
	for _, h := range handles {
		msg = append(msg, []byte(h)...)
	}
	for _, w := range clearValueWords {
		msg = append(msg, w...)
	}
	return
}

// CheckOracleSignature 验证解密证明是否与句柄集合和明文字匹配
// 不匹配返回 group.ErrSignatureInvalid
func CheckOracleSignature(handles []string, clearValueWords [][]byte, proof []byte, oraclePk *ecdsa.PublicKey) (err error) {
	if !ValidateSignatureBase(AttestationMessage(handles, clearValueWords), proof, oraclePk) {
		return group.ErrSignatureInvalid
	}
	return nil
}

func ValidateSignatureBase(msg []byte, sig []byte, pk *ecdsa.PublicKey) (isValid bool) {
	hash := sha256.Sum256(msg)
	return ecdsa.VerifyASN1(pk, hash[:], sig)
}

// --- 明文字编解码部分 ---

// 明文按 ABI 风格编码为 32 字节大端字，值域为 uint32
const ClearValueWordSize = 32

// EncodeClearValueWord 将 uint32 明文编码为 32 字节字
func EncodeClearValueWord(v uint32) (word []byte) {
	word = make([]byte, ClearValueWordSize)
	binary.BigEndian.PutUint32(word[ClearValueWordSize-4:], v)
	return
}

// DecodeClearValueWord 从 32 字节字中解出 uint32 明文
// 长度不对或高位字节非零（值超出 uint32）时
// 返回 group.ErrMalformedClearValue
func DecodeClearValueWord(word []byte) (v uint32, err error) {
	if len(word) != ClearValueWordSize {
		return 0, group.ErrMalformedClearValue
	}
	for _, b := range word[:ClearValueWordSize-4] {
		if b != 0 {
			return 0, group.ErrMalformedClearValue
		}
	}
	return binary.BigEndian.Uint32(word[ClearValueWordSize-4:]), nil
}
