// 包 oracle 实现解密预言机。
// 预言机是离链协作方：持有方案的 CKKS 私钥和证明签发密钥，
// 对公共可解密的密文句柄给出明文和签名证明。
// 注册表只信任证明，不信任预言机的裸输出
package oracle

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/CamberLoid/Warikan/internal/db"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/misc"
	"github.com/CamberLoid/Warikan/internal/serverlib"
	"github.com/tuneinsight/lattigo/v4/ckks"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

var (
	// ErrNotDecryptable 表示句柄未被声明为公共可解密
	ErrNotDecryptable = errors.New("ciphertext handle is not publicly decryptable")
)

// Oracle 解密预言机
// Database 用于只读地查授权表和注册表状态
type Oracle struct {
	Database *sql.DB
	Keys     key.KeyChain
}

// DecryptResult 是一次解密请求的应答
// AlreadyVerified 是结构化的"已经解密验证过"信号：
// 为 true 时调用方应视为成功并回读注册表同步本地状态，
// 而不是再次发起链上验证
type DecryptResult struct {
	GroupID         string   `json:"groupId"`
	Handles         []string `json:"handles"`
	ClearValueWords [][]byte `json:"clearValueWords"`
	Proof           []byte   `json:"proof"`
	AlreadyVerified bool     `json:"alreadyVerified"`
}

func NewOracle(database *sql.DB, kc key.KeyChain) *Oracle {
	return &Oracle{Database: database, Keys: kc}
}

// CKKSPublicKey 返回预言机的 CKKS 公钥，
// 客户端用它加密份额金额
func (o *Oracle) CKKSPublicKey() *rlwe.PublicKey {
	return o.Keys.CKKSKeyChain.CKKSPublicKey
}

// AttestationPublicKey 返回证明验签公钥，
// 服务端启动时将其登记进注册表
func (o *Oracle) AttestationPublicKey() *ecdsa.PublicKey {
	return o.Keys.ECDSAKeyChain.ECDSAPublicKey
}

// RequestPublicDecryption 处理一次公共解密请求
// 若组已经验证，返回带 AlreadyVerified 标记的应答而不是错误；
// 若句柄没有公共可解密授权，拒绝
func (o *Oracle) RequestPublicDecryption(groupID string) (res *DecryptResult, err error) {
	g, err := db.GetGroup(o.Database, groupID)
	if err != nil {
		return nil, err
	}

	if g.IsVerified {
		// 已验证：给出结构化信号，金额以注册表为准
		return &DecryptResult{
			GroupID:         groupID,
			Handles:         []string{g.CTHandle},
			ClearValueWords: [][]byte{serverlib.EncodeClearValueWord(g.DecryptedAmount)},
			AlreadyVerified: true,
		}, nil
	}

	ok, err := db.HasCiphertextGrant(o.Database, g.CTHandle, serverlib.GranteePublic)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotDecryptable
	}

	ct, err := g.GetAmountCT()
	if err != nil {
		return nil, err
	}

	amount, err := o.decryptAmount(ct)
	if err != nil {
		return nil, err
	}

	handles := []string{g.CTHandle}
	words := [][]byte{serverlib.EncodeClearValueWord(amount)}
	proof, err := o.attest(handles, words)
	if err != nil {
		return nil, err
	}

	return &DecryptResult{
		GroupID:         groupID,
		Handles:         handles,
		ClearValueWords: words,
		Proof:           proof,
	}, nil
}

// decryptAmount 解密份额金额密文并还原为整数（分）
func (o *Oracle) decryptAmount(ct *rlwe.Ciphertext) (amount uint32, err error) {
	if o.Keys.CKKSKeyChain.CKKSPrivateKey == nil {
		return 0, errors.New("no CKKS private key found")
	}

	defer func() {
		if p := recover(); p != nil {
			amount = 0
			err = fmt.Errorf("decrypt failed, got panic: %v", p)
		}
	}()

	params := misc.GetCKKSParams()
	encoder := ckks.NewEncoder(params)
	decryptor := ckks.NewDecryptor(params, o.Keys.CKKSKeyChain.CKKSPrivateKey)

	pt := decryptor.DecryptNew(ct)
	decoded := encoder.Decode(pt, params.LogSlots())

	rounded := misc.CKKSMsgRound(real(decoded[0]))
	if rounded > math.MaxUint32 {
		return 0, fmt.Errorf("decrypted amount %d out of range", rounded)
	}
	return uint32(rounded), nil
}

// attest 对 (句柄集合, 明文字集合) 签发解密证明
func (o *Oracle) attest(handles []string, words [][]byte) (proof []byte, err error) {
	if o.Keys.ECDSAKeyChain.ECDSAPrivateKey == nil {
		return nil, errors.New("no ECDSA private key found")
	}
	hash := sha256.Sum256(serverlib.AttestationMessage(handles, words))
	return ecdsa.SignASN1(rand.Reader, o.Keys.ECDSAKeyChain.ECDSAPrivateKey, hash[:])
}
