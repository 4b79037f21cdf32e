// 包 restfulpayload 定义了通信中的请求载荷结构体
// 二进制字段（密文、证明、公钥）统一用 base64 编码
package restfulpayload

import "github.com/google/uuid"

// RegisterUserReq 表示用户（组创建者）注册请求
type RegisterUserReq struct {
	UUID         uuid.UUID `json:"uuid"`
	Name         string    `json:"name"`
	ECDSA_pubkey string    `json:"ecdsa_pubkey"`
}

// CreateGroupReq 表示订阅组摄取请求
// Ciphertext 是份额金额密文，Proof 是创建者对密文的合法性证明
type CreateGroupReq struct {
	GroupID           string    `json:"groupId"`
	DisplayName       string    `json:"displayName"`
	Ciphertext        string    `json:"ciphertext"`
	Proof             string    `json:"proof"`
	PublicTotalAmount uint64    `json:"publicTotalAmount"`
	PublicMemberCount uint64    `json:"publicMemberCount"`
	Description       string    `json:"description"`
	Creator           uuid.UUID `json:"creator"`
}

// GetGroupReq 表示按标识符查询请求，
// /group/get、/group/getEncryptedAmount 和 /oracle/requestDecryption 共用
type GetGroupReq struct {
	GroupID string `json:"groupId"`
}

// VerifyDecryptionReq 表示解密验证请求
// ClearValueWord 是 ABI 风格编码的明文字，Proof 是预言机签发的解密证明
type VerifyDecryptionReq struct {
	GroupID        string `json:"groupId"`
	ClearValueWord string `json:"clearValueWord"`
	Proof          string `json:"proof"`
}
