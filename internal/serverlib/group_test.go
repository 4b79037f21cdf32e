package serverlib_test

import (
	"bytes"
	"database/sql"
	"errors"
	"testing"

	"github.com/CamberLoid/Warikan/internal/clientlib"
	"github.com/CamberLoid/Warikan/internal/db"
	"github.com/CamberLoid/Warikan/internal/group"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/oracle"
	"github.com/CamberLoid/Warikan/internal/serverlib"
	"github.com/CamberLoid/Warikan/internal/users"
	_ "github.com/mattn/go-sqlite3"
)

// initTestDatabase 建立内存数据库
// 限制为单连接，保证 :memory: 下所有操作落在同一个库上
func initTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	database.SetMaxOpenConns(1)

	for _, ddl := range []string{
		db.CreateUserTable(),
		db.CreateGroupTable(),
		db.CreateCiphertextGrantTable(),
		db.CreateEventTable(),
		db.CreateECDSAPublicKeyTable(),
		db.CreateOracleKeyTable(),
	} {
		if _, err := database.Exec(ddl); err != nil {
			t.Fatal(err)
		}
	}
	return database
}

type testEnv struct {
	database *sql.DB
	creator  clientlib.User
	oracle   *oracle.Oracle
}

// initTestEnv 注册一个创建者和一个预言机
func initTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database := initTestDatabase(t)

	// 创建者及其验签公钥
	creator := clientlib.User{User: *users.NewUserWithUserName("Alice")}
	kc, err := key.GenECDSAKeyChain()
	if err != nil {
		t.Fatal(err)
	}
	creator.UserECDSAKeyChain = []key.ECDSAKeyChain{kc}
	if err := db.PutUserColumn(database, &creator.User); err != nil {
		t.Fatal(err)
	}
	if err := db.PutECDSAPublicKeyColumn(database, kc.Identifier, creator.UserIdentifier, kc.ECDSAPublicKey); err != nil {
		t.Fatal(err)
	}

	// 预言机及其证明公钥
	okc, err := key.GenKeyChain()
	if err != nil {
		t.Fatal(err)
	}
	o := oracle.NewOracle(database, okc)
	if err := db.PutOracleKeyColumn(database, okc.ECDSAKeyChain.Identifier, o.AttestationPublicKey()); err != nil {
		t.Fatal(err)
	}

	return &testEnv{database: database, creator: creator, oracle: o}
}

// createGroup 走完整的摄取流程：加密、签证明、提交
func (e *testEnv) createGroup(t *testing.T, groupID, displayName, description string, share uint32, members, total uint64) error {
	t.Helper()

	ct := clientlib.CKKSEncryptAmount(share, e.oracle.CKKSPublicKey())
	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	proof, err := e.creator.SignCTProof(ctBytes, groupID)
	if err != nil {
		t.Fatal(err)
	}

	g := &group.SubscriptionGroup{
		GroupID:           groupID,
		DisplayName:       displayName,
		EncryptedAmount:   ctBytes,
		PublicTotalAmount: total,
		PublicMemberCount: members,
		Description:       description,
		Creator:           e.creator.UserIdentifier,
	}
	return serverlib.CreateGroup(e.database, g, proof)
}

// settle 请求预言机解密并提交验证
func (e *testEnv) settle(t *testing.T, groupID string) (uint32, error) {
	t.Helper()

	res, err := e.oracle.RequestPublicDecryption(groupID)
	if err != nil {
		return 0, err
	}
	if res.AlreadyVerified {
		g, err := db.GetGroup(e.database, groupID)
		if err != nil {
			return 0, err
		}
		return g.DecryptedAmount, nil
	}
	return serverlib.VerifyDecryptedAmount(e.database, groupID, res.ClearValueWords[0], res.Proof)
}

func TestGroupLifecycle(t *testing.T) {
	env := initTestEnv(t)

	// 创建 g1：4 人，总额 400，每人 100
	if err := env.createGroup(t, "g1", "Netflix Premium", "Netflix", 100, 4, 400); err != nil {
		t.Fatal(err)
	}

	ids, err := db.GetAllGroupIDs(env.database)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "g1" {
		t.Fatalf("getAllGroupIds = %v, expected [g1]", ids)
	}

	g, err := db.GetGroup(env.database, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if g.IsVerified || g.DecryptedAmount != 0 {
		t.Errorf("fresh group should be unverified with zero amount, got %v/%d", g.IsVerified, g.DecryptedAmount)
	}
	if g.PublicMemberCount != 4 || g.PublicTotalAmount != 400 || g.Description != "Netflix" {
		t.Errorf("metadata mismatch: %+v", g)
	}

	ctBefore := append([]byte{}, g.EncryptedAmount...)

	// 解密验证，明文应为 100
	amount, err := env.settle(t, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if amount != 100 {
		t.Errorf("decrypted amount = %d, expected 100", amount)
	}

	g, err = db.GetGroup(env.database, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsVerified || g.DecryptedAmount != 100 {
		t.Errorf("after verify: isVerified=%v amount=%d", g.IsVerified, g.DecryptedAmount)
	}

	// 密文只写一次：验证前后字节一致
	if !bytes.Equal(ctBefore, g.EncryptedAmount) {
		t.Error("encryptedAmount changed after verification")
	}
}

func TestVerifyTwiceFails(t *testing.T) {
	env := initTestEnv(t)
	if err := env.createGroup(t, "g1", "Netflix Premium", "Netflix", 100, 4, 400); err != nil {
		t.Fatal(err)
	}

	res, err := env.oracle.RequestPublicDecryption("g1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = serverlib.VerifyDecryptedAmount(env.database, "g1", res.ClearValueWords[0], res.Proof); err != nil {
		t.Fatal(err)
	}

	// 重放同一份证明，必须确定性地失败
	_, err = serverlib.VerifyDecryptedAmount(env.database, "g1", res.ClearValueWords[0], res.Proof)
	if !errors.Is(err, group.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}

	// 状态保持不变
	g, err := db.GetGroup(env.database, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsVerified || g.DecryptedAmount != 100 {
		t.Errorf("state changed after failed replay: %v/%d", g.IsVerified, g.DecryptedAmount)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	env := initTestEnv(t)
	if err := env.createGroup(t, "g1", "Netflix Premium", "Netflix", 100, 4, 400); err != nil {
		t.Fatal(err)
	}

	err := env.createGroup(t, "g1", "Spotify", "Spotify", 50, 2, 100)
	if !errors.Is(err, group.ErrGroupAlreadyExists) {
		t.Fatalf("expected ErrGroupAlreadyExists, got %v", err)
	}

	// 原记录不受影响
	g, err := db.GetGroup(env.database, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if g.DisplayName != "Netflix Premium" || g.PublicMemberCount != 4 {
		t.Errorf("original record changed: %+v", g)
	}
}

// 摄取是一个事务：中途失败不能留下没有访问能力的半成品组
func TestCreateRollsBackOnPartialFailure(t *testing.T) {
	env := initTestEnv(t)

	// 撤掉事件表，让摄取的最后一步失败
	if _, err := env.database.Exec(`DROP TABLE Events;`); err != nil {
		t.Fatal(err)
	}
	if err := env.createGroup(t, "g1", "Netflix Premium", "Netflix", 100, 4, 400); err == nil {
		t.Fatal("expected create to fail when event append fails")
	}

	// 组不应被写入
	if _, err := db.GetGroup(env.database, "g1"); !errors.Is(err, group.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound after rollback, got %v", err)
	}

	// 恢复事件表之后同一个标识符可以正常创建
	if _, err := env.database.Exec(db.CreateEventTable()); err != nil {
		t.Fatal(err)
	}
	if err := env.createGroup(t, "g1", "Netflix Premium", "Netflix", 100, 4, 400); err != nil {
		t.Fatal(err)
	}
}

// 验证提交同理：报告失败就不能已经提交
func TestVerifyRollsBackOnPartialFailure(t *testing.T) {
	env := initTestEnv(t)
	if err := env.createGroup(t, "g1", "Netflix Premium", "Netflix", 100, 4, 400); err != nil {
		t.Fatal(err)
	}

	res, err := env.oracle.RequestPublicDecryption("g1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.database.Exec(`DROP TABLE Events;`); err != nil {
		t.Fatal(err)
	}
	if _, err = serverlib.VerifyDecryptedAmount(env.database, "g1", res.ClearValueWords[0], res.Proof); err == nil {
		t.Fatal("expected verify to fail when event append fails")
	}

	g, err := db.GetGroup(env.database, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if g.IsVerified || g.DecryptedAmount != 0 {
		t.Fatalf("failed verify left partial state: %v/%d", g.IsVerified, g.DecryptedAmount)
	}

	// 恢复事件表之后同一份证明仍然可以提交
	if _, err := env.database.Exec(db.CreateEventTable()); err != nil {
		t.Fatal(err)
	}
	amount, err := serverlib.VerifyDecryptedAmount(env.database, "g1", res.ClearValueWords[0], res.Proof)
	if err != nil {
		t.Fatal(err)
	}
	if amount != 100 {
		t.Errorf("decrypted amount = %d, expected 100", amount)
	}
}

func TestCreateWithBadMetadata(t *testing.T) {
	env := initTestEnv(t)

	err := env.createGroup(t, "", "Netflix Premium", "Netflix", 100, 4, 400)
	if !errors.Is(err, group.ErrInvalidGroupMetadata) {
		t.Fatalf("empty group id: expected ErrInvalidGroupMetadata, got %v", err)
	}

	err = env.createGroup(t, "g1", "Netflix Premium", "Netflix", 100, 0, 400)
	if !errors.Is(err, group.ErrInvalidGroupMetadata) {
		t.Fatalf("zero member count: expected ErrInvalidGroupMetadata, got %v", err)
	}
}

func TestCreateWithUnregisteredCreator(t *testing.T) {
	env := initTestEnv(t)

	// 有自己的密钥链，但从未在注册表登记过公钥
	stranger := clientlib.User{User: *users.NewUserWithUserName("Mallory")}
	kc, err := key.GenECDSAKeyChain()
	if err != nil {
		t.Fatal(err)
	}
	stranger.UserECDSAKeyChain = []key.ECDSAKeyChain{kc}

	ct := clientlib.CKKSEncryptAmount(100, env.oracle.CKKSPublicKey())
	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	proof, err := stranger.SignCTProof(ctBytes, "g1")
	if err != nil {
		t.Fatal(err)
	}

	g := &group.SubscriptionGroup{
		GroupID:           "g1",
		DisplayName:       "Netflix Premium",
		EncryptedAmount:   ctBytes,
		PublicMemberCount: 4,
		Creator:           stranger.UserIdentifier,
	}
	err = serverlib.CreateGroup(env.database, g, proof)
	if !errors.Is(err, group.ErrCreatorKeyNotFound) {
		t.Fatalf("expected ErrCreatorKeyNotFound, got %v", err)
	}
}

func TestVerifyUnknownGroup(t *testing.T) {
	env := initTestEnv(t)

	word := serverlib.EncodeClearValueWord(100)
	_, err := serverlib.VerifyDecryptedAmount(env.database, "ghost", word, []byte("proof"))
	if !errors.Is(err, group.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}

	if _, err = db.GetGroup(env.database, "ghost"); !errors.Is(err, group.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound on read, got %v", err)
	}
}

func TestCreateWithBadProof(t *testing.T) {
	env := initTestEnv(t)

	ct := clientlib.CKKSEncryptAmount(100, env.oracle.CKKSPublicKey())
	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	g := &group.SubscriptionGroup{
		GroupID:           "g2",
		DisplayName:       "Spotify",
		EncryptedAmount:   ctBytes,
		PublicMemberCount: 2,
		Creator:           env.creator.UserIdentifier,
	}
	err = serverlib.CreateGroup(env.database, g, []byte("bogus proof"))
	if !errors.Is(err, group.ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}

	// g2 不应出现在标识符序列里
	ids, err := db.GetAllGroupIDs(env.database)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if id == "g2" {
			t.Error("rejected group appeared in id list")
		}
	}
}

func TestVerifyWithForgedProof(t *testing.T) {
	env := initTestEnv(t)
	if err := env.createGroup(t, "g1", "Netflix Premium", "Netflix", 100, 4, 400); err != nil {
		t.Fatal(err)
	}

	res, err := env.oracle.RequestPublicDecryption("g1")
	if err != nil {
		t.Fatal(err)
	}

	// 用正确的证明验证错误的明文
	forgedWord := serverlib.EncodeClearValueWord(1)
	_, err = serverlib.VerifyDecryptedAmount(env.database, "g1", forgedWord, res.Proof)
	if !errors.Is(err, group.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	// 失败不留部分状态
	g, err := db.GetGroup(env.database, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if g.IsVerified || g.DecryptedAmount != 0 {
		t.Errorf("failed verify left partial state: %v/%d", g.IsVerified, g.DecryptedAmount)
	}
}

func TestGroupIDsOrdered(t *testing.T) {
	env := initTestEnv(t)

	for i, id := range []string{"g1", "g2", "g3"} {
		if err := env.createGroup(t, id, id, id, uint32(100+i), 2, 200); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := db.GetAllGroupIDs(env.database)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"g1", "g2", "g3"}
	if len(ids) != len(expected) {
		t.Fatalf("got %d ids, expected %d", len(ids), len(expected))
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Errorf("ids[%d] = %s, expected %s", i, ids[i], expected[i])
		}
	}
}
