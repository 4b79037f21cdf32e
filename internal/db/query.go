package db

import (
	"crypto/ecdsa"
	"database/sql"
	"time"

	"github.com/CamberLoid/Warikan/internal/group"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/users"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Queryer 是 *sql.DB 和 *sql.Tx 的公共子集
// 提交点要做的写入辅助方法都接受 Queryer，
// 这样 serverlib 能把一个提交点的多条写入放进同一个事务里
type Queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// --- 查询部分 ---

// GetGroup 按组标识符查询订阅组
// 不存在时返回 group.ErrGroupNotFound
func GetGroup(db *sql.DB, groupID string) (g *group.SubscriptionGroup, err error) {
	stmt, err := db.Prepare(`
		SELECT group_id, display_name, encrypted_amount, ct_handle,
			public_total_amount, public_member_count, description,
			creator, creation_time, decrypted_amount, is_verified
		FROM Groups
		WHERE group_id = ?
	`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare statement")
	}
	defer stmt.Close()

	var creator string
	g = &group.SubscriptionGroup{}
	err = stmt.QueryRow(groupID).Scan(
		&g.GroupID,
		&g.DisplayName,
		&g.EncryptedAmount,
		&g.CTHandle,
		&g.PublicTotalAmount,
		&g.PublicMemberCount,
		&g.Description,
		&creator,
		&g.CreationTime,
		&g.DecryptedAmount,
		&g.IsVerified,
	)
	if err == sql.ErrNoRows {
		return nil, group.ErrGroupNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan row")
	}

	if g.Creator, err = uuid.Parse(creator); err != nil {
		return nil, errors.Wrap(err, "parse creator uuid")
	}

	return g, nil
}

// GetAllGroupIDs 返回全部组标识符，按创建顺序排列
func GetAllGroupIDs(db *sql.DB) (ids []string, err error) {
	rows, err := db.Query(`
		SELECT group_id FROM Groups ORDER BY seq;
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query group ids")
	}
	defer rows.Close()

	ids = []string{}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan group id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetGroupCiphertext 返回组密文句柄和密文字节
func GetGroupCiphertext(db *sql.DB, groupID string) (handle string, ct []byte, err error) {
	err = db.QueryRow(`
		SELECT ct_handle, encrypted_amount FROM Groups WHERE group_id = ?;
	`, groupID).Scan(&handle, &ct)
	if err == sql.ErrNoRows {
		return "", nil, group.ErrGroupNotFound
	}
	if err != nil {
		return "", nil, errors.Wrap(err, "scan ciphertext")
	}
	return
}

// --- 写入部分 ---

// InsertGroup 将新的订阅组写入注册表
// 只做 INSERT 不做 UPSERT：group_id 冲突由 UNIQUE 约束裁决，
// 先写者胜，后写者得到 group.ErrGroupAlreadyExists
func InsertGroup(db Queryer, g *group.SubscriptionGroup) (err error) {
	stmt, err := db.Prepare(`
		INSERT INTO Groups (
			group_id, display_name, encrypted_amount, ct_handle,
			public_total_amount, public_member_count, description,
			creator, creation_time, decrypted_amount, is_verified
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare statement")
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		g.GroupID, g.DisplayName, g.EncryptedAmount, g.CTHandle,
		g.PublicTotalAmount, g.PublicMemberCount, g.Description,
		g.Creator.String(), g.CreationTime,
	)
	if sqliteErr, ok := err.(sqlite3.Error); ok &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return group.ErrGroupAlreadyExists
	}
	if err != nil {
		return errors.Wrap(err, "insert group")
	}
	return nil
}

// CommitVerifiedAmount 将验证通过的明文金额一次性提交进注册表
// check-then-set 在单条被守卫的 UPDATE 里完成，
// sqlite 对写入者做串行化，两个并发提交中只会有一个命中 is_verified = 0
func CommitVerifiedAmount(db Queryer, groupID string, amount uint32) (err error) {
	res, err := db.Exec(`
		UPDATE Groups
		SET decrypted_amount = ?, is_verified = 1
		WHERE group_id = ? AND is_verified = 0;
	`, amount, groupID)
	if err != nil {
		return errors.Wrap(err, "commit verified amount")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 1 {
		return nil
	}

	// 没有命中：要么组不存在，要么已经验证过
	var verified bool
	err = db.QueryRow(`
		SELECT is_verified FROM Groups WHERE group_id = ?;
	`, groupID).Scan(&verified)
	if err == sql.ErrNoRows {
		return group.ErrGroupNotFound
	}
	if err != nil {
		return errors.Wrap(err, "check verified flag")
	}
	return group.ErrAlreadyVerified
}

// PutCiphertextGrant 对密文句柄声明一项访问能力，重复声明幂等
func PutCiphertextGrant(db Queryer, handle, grantee string) (err error) {
	_, err = db.Exec(`
		INSERT OR IGNORE INTO CiphertextGrants (ct_handle, grantee, granted_at)
		VALUES (?, ?, ?);
	`, handle, grantee, time.Now().Unix())
	if err != nil {
		return errors.Wrap(err, "put ciphertext grant")
	}
	return nil
}

// HasCiphertextGrant 查询密文句柄是否具有某项访问能力
func HasCiphertextGrant(db *sql.DB, handle, grantee string) (ok bool, err error) {
	var n int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM CiphertextGrants
		WHERE ct_handle = ? AND grantee = ?;
	`, handle, grantee).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "query ciphertext grant")
	}
	return n > 0, nil
}

// AppendEvent 向事件表追加一条事件
func AppendEvent(db Queryer, kind, groupID, payload string) (err error) {
	_, err = db.Exec(`
		INSERT INTO Events (uuid, kind, group_id, payload, timestamp)
		VALUES (?, ?, ?, ?, ?);
	`, uuid.New().String(), kind, groupID, payload, time.Now().Unix())
	if err != nil {
		return errors.Wrap(err, "append event")
	}
	return nil
}

// --- 用户与密钥部分 ---

// PutUserColumn 添加新的用户
func PutUserColumn(db *sql.DB, u *users.User) (err error) {
	_, err = db.Exec(`
		INSERT INTO Users (uuid, userName)
		VALUES (?, ?)
		ON CONFLICT (uuid) DO UPDATE SET userName = excluded.userName;
	`, u.UserIdentifier.String(), u.UserName)
	if err != nil {
		return errors.Wrap(err, "put user")
	}
	return nil
}

// PutECDSAPublicKeyColumn 创建新的ECDSA公钥行
func PutECDSAPublicKeyColumn(db *sql.DB, keyID, userID uuid.UUID, pk *ecdsa.PublicKey) (err error) {
	_, err = db.Exec(`
		INSERT INTO ECDSAPublicKeys (uuid, user, publicKey)
		VALUES (?, ?, ?);
	`, keyID.String(), userID.String(), key.MarshalECDSAPublicKey(pk))
	if err != nil {
		return errors.Wrap(err, "put ecdsa public key")
	}
	return nil
}

// GetECDSAPubkeyByUserUUID 查询用户注册的验签公钥
func GetECDSAPubkeyByUserUUID(db *sql.DB, userID uuid.UUID) (pk *ecdsa.PublicKey, err error) {
	var pkBytes []byte
	err = db.QueryRow(`
		SELECT publicKey FROM ECDSAPublicKeys WHERE user = ?;
	`, userID.String()).Scan(&pkBytes)
	if err != nil {
		return nil, errors.Wrap(err, "scan ecdsa public key")
	}
	return key.UnmarshalECDSAPublicKey(pkBytes)
}

// PutOracleKeyColumn 登记解密预言机的证明签发公钥
func PutOracleKeyColumn(db *sql.DB, keyID uuid.UUID, pk *ecdsa.PublicKey) (err error) {
	_, err = db.Exec(`
		INSERT INTO OracleKeys (uuid, publicKey, registered_at)
		VALUES (?, ?, ?);
	`, keyID.String(), key.MarshalECDSAPublicKey(pk), time.Now().Unix())
	if err != nil {
		return errors.Wrap(err, "put oracle key")
	}
	return nil
}

// GetOracleKey 返回最近登记的预言机公钥
func GetOracleKey(db *sql.DB) (pk *ecdsa.PublicKey, err error) {
	var pkBytes []byte
	err = db.QueryRow(`
		SELECT publicKey FROM OracleKeys ORDER BY registered_at DESC, uuid LIMIT 1;
	`).Scan(&pkBytes)
	if err != nil {
		return nil, errors.Wrap(err, "scan oracle key")
	}
	return key.UnmarshalECDSAPublicKey(pkBytes)
}
