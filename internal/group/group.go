// 包 group 包含订阅组（SubscriptionGroup）的抽象和生命周期状态
package group

import (
	"github.com/CamberLoid/Warikan/internal/misc"
	"github.com/google/uuid"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// SubscriptionGroup 是单个订阅拼单组的抽象，
// 一个 SubscriptionGroup 包含了组的标识符、创建者、密文份额金额和公开元数据。具体如下：
// GroupID: string，注册表主键，创建后不可变
// EncryptedAmount: []byte <- rlwe.CipherText.MarshalBinary()，每人份额的密文，只写一次
// CTHandle: 密文句柄，即密文序列化后的 SHA-256 摘要（hex）
// DecryptedAmount / IsVerified: 由 Decrypt-Verify 协议写入，且只写一次
type SubscriptionGroup struct {
	GroupID           string    `json:"groupId"`
	DisplayName       string    `json:"displayName"`
	EncryptedAmount   []byte    `json:"encryptedAmount"`
	CTHandle          string    `json:"ctHandle"`
	PublicTotalAmount uint64    `json:"publicTotalAmount"`
	PublicMemberCount uint64    `json:"publicMemberCount"`
	Description       string    `json:"description"`
	Creator           uuid.UUID `json:"creator"`
	CreationTime      int64     `json:"creationTime"` // unix时间戳
	DecryptedAmount   uint32    `json:"decryptedAmount"`
	IsVerified        bool      `json:"isVerified"`
}

// GetAmountCT 将存储的密文字节反序列化为 rlwe.Ciphertext
func (g SubscriptionGroup) GetAmountCT() (ct *rlwe.Ciphertext, err error) {
	ct = misc.NewCiphertext()

	if g.EncryptedAmount == nil {
		err = ErrInvalidCiphertext
	} else {
		err = ct.UnmarshalBinary(g.EncryptedAmount)
	}

	return
}
