package serverlib

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/CamberLoid/Warikan/internal/db"
	"github.com/CamberLoid/Warikan/internal/group"
)

// 事件类型
const (
	EventGroupCreated   = "groupCreated"
	EventAmountVerified = "amountVerified"
)

// 密文访问能力的被授予方
// registry 代表注册表自身后续引用密文的能力，
// public 代表任何人都可以请求预言机解密该句柄
const (
	GranteeRegistry = "registry"
	GranteePublic   = "public"
)

// 注册表的全部变更都经过本文件的两个提交点：
// CreateGroup（摄取）和 VerifyDecryptedAmount（解密验证）

// CreateGroup 摄取一个新的订阅组：
// 验证外部密文与证明，写入注册表，然后声明访问能力
// g 需要填好 GroupID / DisplayName / EncryptedAmount / 公开元数据 / Creator，
// 其余字段（句柄、时间戳、验证状态）由本方法填写
func CreateGroup(database *sql.DB, g *group.SubscriptionGroup, proof []byte) (err error) {
	if g.GroupID == "" {
		return fmt.Errorf("%w: empty group id", group.ErrInvalidGroupMetadata)
	}
	if g.PublicMemberCount == 0 {
		return fmt.Errorf("%w: member count must be positive", group.ErrInvalidGroupMetadata)
	}

	// 取创建者注册的验签公钥
	creatorPk, err := db.GetECDSAPubkeyByUserUUID(database, g.Creator)
	if err != nil {
		return fmt.Errorf("%w: %v", group.ErrCreatorKeyNotFound, err)
	}

	// 验证密文和证明，得到句柄
	handle, err := ValidateExternalCiphertext(g.EncryptedAmount, proof, g.GroupID, creatorPk)
	if err != nil {
		return err
	}

	g.CTHandle = handle
	g.CreationTime = time.Now().Unix()
	g.DecryptedAmount = 0
	g.IsVerified = false

	// 写入、声明访问能力、追加事件在同一个事务里完成，全有或全无。
	// 标识符冲突由 UNIQUE 约束裁决，先写者胜
	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %v", err)
	}
	// Commit 之后 Rollback 是空操作
	defer tx.Rollback()

	if err = db.InsertGroup(tx, g); err != nil {
		return err
	}

	// 注册表自身可引用，且句柄公共可解密。声明幂等，且没有撤销路径
	if err = db.PutCiphertextGrant(tx, handle, GranteeRegistry); err != nil {
		return err
	}
	if err = db.PutCiphertextGrant(tx, handle, GranteePublic); err != nil {
		return err
	}

	if err = db.AppendEvent(tx, EventGroupCreated, g.GroupID, g.Creator.String()); err != nil {
		return err
	}

	return tx.Commit()
}

// VerifyDecryptedAmount 实现解密验证协议：
// 组存在且未验证 -> 预言机签名匹配 -> 明文字可解码 -> 一次性提交
// 提交本身是一条被守卫的 UPDATE，两个并发提交只会有一个成功，
// 落败方得到 group.ErrAlreadyVerified
func VerifyDecryptedAmount(database *sql.DB, groupID string, clearValueWord, proof []byte) (amount uint32, err error) {
	// 前置检查 1：组存在
	g, err := db.GetGroup(database, groupID)
	if err != nil {
		return 0, err
	}

	// 前置检查 2：尚未验证
	// 这里的读取只用于提前给出确定的失败结果，
	// 真正的并发裁决在下面的 CommitVerifiedAmount 里
	if g.IsVerified {
		return 0, group.ErrAlreadyVerified
	}

	// 重建该组绑定的句柄集合（这里只有份额密文一个句柄），
	// 验证预言机对 (句柄集合, 明文字) 的签名
	oraclePk, err := db.GetOracleKey(database)
	if err != nil {
		return 0, fmt.Errorf("oracle key not found: %v", err)
	}
	err = CheckOracleSignature([]string{g.CTHandle}, [][]byte{clearValueWord}, proof, oraclePk)
	if err != nil {
		return 0, err
	}

	// 解码明文
	amount, err = DecodeClearValueWord(clearValueWord)
	if err != nil {
		return 0, err
	}

	// 提交。check-then-set 在单条被守卫的 UPDATE 中原子完成，
	// 事件追加和它放在同一个事务里，全有或全无
	tx, err := database.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %v", err)
	}
	defer tx.Rollback()

	if err = db.CommitVerifiedAmount(tx, groupID, amount); err != nil {
		return 0, err
	}
	if err = db.AppendEvent(tx, EventAmountVerified, groupID, fmt.Sprint(amount)); err != nil {
		return 0, err
	}

	return amount, tx.Commit()
}
