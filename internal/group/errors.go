package group

import "errors"

// 错误类型部分
// 所有可能跨包返回的失败结果都用哨兵错误表示，
// 调用方用 errors.Is 判断，不做错误信息的字符串匹配
var (
	// ErrGroupAlreadyExists 表示组标识符已被占用，先写者胜
	ErrGroupAlreadyExists = errors.New("group already exists")

	// ErrGroupNotFound 表示注册表中不存在该组
	ErrGroupNotFound = errors.New("group not found")

	// ErrInvalidCiphertext 表示外部密文或其合法性证明未通过校验
	ErrInvalidCiphertext = errors.New("invalid ciphertext or inclusion proof")

	// ErrSignatureInvalid 表示预言机签发的解密证明与句柄或明文不匹配
	ErrSignatureInvalid = errors.New("oracle signature invalid")

	// ErrMalformedClearValue 表示明文编码不是合法的 uint32 字
	ErrMalformedClearValue = errors.New("malformed clear value")

	// ErrAlreadyVerified 表示该组已完成验证，不允许二次提交
	ErrAlreadyVerified = errors.New("group already verified")

	// ErrInvalidGroupMetadata 表示摄取请求缺少必要的公开元数据
	ErrInvalidGroupMetadata = errors.New("invalid group metadata")

	// ErrCreatorKeyNotFound 表示创建者没有在注册表登记验签公钥
	ErrCreatorKeyNotFound = errors.New("creator signing key not registered")
)

// 错误类别标签，用于跨 HTTP 边界传递结构化的失败结果
// 客户端凭标签还原哨兵错误，不解析错误信息文本
const (
	KindGroupAlreadyExists  = "groupAlreadyExists"
	KindGroupNotFound       = "groupNotFound"
	KindInvalidCiphertext   = "invalidCiphertext"
	KindSignatureInvalid    = "signatureInvalid"
	KindMalformedClearValue = "malformedClearValue"
	KindAlreadyVerified     = "alreadyVerified"
	KindInvalidMetadata     = "invalidGroupMetadata"
	KindCreatorKeyNotFound  = "creatorKeyNotFound"
)

// ErrKind 返回错误对应的类别标签，非本包错误返回空串
func ErrKind(err error) string {
	switch {
	case errors.Is(err, ErrGroupAlreadyExists):
		return KindGroupAlreadyExists
	case errors.Is(err, ErrGroupNotFound):
		return KindGroupNotFound
	case errors.Is(err, ErrInvalidCiphertext):
		return KindInvalidCiphertext
	case errors.Is(err, ErrSignatureInvalid):
		return KindSignatureInvalid
	case errors.Is(err, ErrMalformedClearValue):
		return KindMalformedClearValue
	case errors.Is(err, ErrAlreadyVerified):
		return KindAlreadyVerified
	case errors.Is(err, ErrInvalidGroupMetadata):
		return KindInvalidMetadata
	case errors.Is(err, ErrCreatorKeyNotFound):
		return KindCreatorKeyNotFound
	}
	return ""
}

// ErrFromKind 由类别标签还原哨兵错误，未知标签返回 nil
func ErrFromKind(kind string) error {
	switch kind {
	case KindGroupAlreadyExists:
		return ErrGroupAlreadyExists
	case KindGroupNotFound:
		return ErrGroupNotFound
	case KindInvalidCiphertext:
		return ErrInvalidCiphertext
	case KindSignatureInvalid:
		return ErrSignatureInvalid
	case KindMalformedClearValue:
		return ErrMalformedClearValue
	case KindAlreadyVerified:
		return ErrAlreadyVerified
	case KindInvalidMetadata:
		return ErrInvalidGroupMetadata
	case KindCreatorKeyNotFound:
		return ErrCreatorKeyNotFound
	}
	return nil
}
