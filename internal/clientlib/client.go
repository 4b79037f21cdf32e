package clientlib

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/CamberLoid/Warikan/internal/group"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/restfulpayload"
	_ "github.com/mattn/go-sqlite3"
)

type Client struct {
	Database *sql.DB
	MainUser User
}

func NewClient(dbPath string, mainUser User) (c *Client, err error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{db, mainUser}, err
}

// --- 创建订阅组部分 ---

// CreateSubscriptionGroup 创建一个新的订阅拼单组：
// 向预言机获取加密公钥，加密每人份额金额，签发密文合法性证明，
// 然后把摄取请求提交到服务端
// shareAmount 单位为分
func (c Client) CreateSubscriptionGroup(groupID, displayName, description string, shareAmount uint32, memberCount, totalAmount uint64) (err error) {
	if memberCount == 0 {
		return errors.New("member count must be positive")
	}

	oraclePk, err := GetOracleCKKSPublicKey()
	if err != nil {
		return fmt.Errorf("get oracle public key failed: %v", err)
	}

	ct := CKKSEncryptAmount(shareAmount, oraclePk)
	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		return err
	}

	proof, err := c.MainUser.SignCTProof(ctBytes, groupID)
	if err != nil {
		return err
	}

	req := &restfulpayload.CreateGroupReq{
		GroupID:           groupID,
		DisplayName:       displayName,
		Ciphertext:        base64.RawStdEncoding.EncodeToString(ctBytes),
		Proof:             base64.RawStdEncoding.EncodeToString(proof),
		PublicTotalAmount: totalAmount,
		PublicMemberCount: memberCount,
		Description:       description,
		Creator:           c.MainUser.UserIdentifier,
	}

	return CreateGroupOnServer(req)
}

// --- 解密验证部分 ---

// SettleGroup 驱动一个组的解密验证流程：
// 向预言机请求公共解密，把明文字和解密证明提交到服务端验证。
// 两种"已经验证过"的情形都视为成功并回读注册表同步：
// 预言机应答里的结构化 AlreadyVerified 信号，
// 以及提交时服务端返回的 ErrAlreadyVerified（链上状态为准，不再重试写入）
func (c Client) SettleGroup(groupID string) (amount uint32, err error) {
	res, err := RequestOracleDecryption(groupID)
	if err != nil {
		return 0, err
	}

	if res.AlreadyVerified {
		return c.resyncVerifiedAmount(groupID)
	}

	if len(res.ClearValueWords) != 1 {
		return 0, fmt.Errorf("unexpected clear value count %d", len(res.ClearValueWords))
	}

	amount, err = SubmitVerifyDecryption(groupID, res.ClearValueWords[0], res.Proof)
	if errors.Is(err, group.ErrAlreadyVerified) {
		// 另一个提交者抢先提交成功，以注册表为准
		return c.resyncVerifiedAmount(groupID)
	}
	return amount, err
}

// resyncVerifiedAmount 回读注册表，同步已验证的金额
func (c Client) resyncVerifiedAmount(groupID string) (amount uint32, err error) {
	g, err := GetGroupFromServer(groupID)
	if err != nil {
		return 0, err
	}
	if !g.IsVerified {
		return 0, fmt.Errorf("group %s is not verified on the registry", groupID)
	}
	return g.DecryptedAmount, nil
}

// --- 本地密钥部分 ---

// PersistMainUserKeys 把主用户的密钥链存入客户端数据库
func (c Client) PersistMainUserKeys() (err error) {
	if err = putUserColumn(c.Database, &c.MainUser); err != nil {
		return err
	}
	if c.MainUser.UserECDSAKeyChain != nil {
		err = putECDSAPrivateKeyColumn(c.Database,
			c.MainUser.UserECDSAKeyChain[0].Identifier,
			c.MainUser.UserIdentifier,
			c.MainUser.UserECDSAKeyChain[0].ECDSAPrivateKey)
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadMainUserKeys 从客户端数据库恢复主用户的签名密钥链
func (c *Client) LoadMainUserKeys() (err error) {
	sk, keyID, err := getECDSAPrivateKeyByUser(c.Database, c.MainUser.UserIdentifier)
	if err != nil {
		return err
	}
	pk := sk.PublicKey
	c.MainUser.UserECDSAKeyChain = []key.ECDSAKeyChain{{
		Identifier:      keyID,
		ECDSAPrivateKey: sk,
		ECDSAPublicKey:  &pk,
	}}
	return nil
}
