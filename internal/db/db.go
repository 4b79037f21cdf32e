// 包 db 包含共用的sql操作方法
package db

import (
	_ "github.com/mattn/go-sqlite3"
)

// --- 数据库具体操作 ---
// --- 初始化：建表 ---

// table Groups
// seq 为自增主键，提供追加写入的创建顺序；
// group_id 上的 UNIQUE 约束即"组已存在"的判定，
// 不依赖 description 之类的业务字段作存在性哨兵
func CreateGroupTable() string {
	return `
        CREATE TABLE IF NOT EXISTS Groups (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            group_id TEXT UNIQUE NOT NULL,
            display_name TEXT,
            encrypted_amount BLOB NOT NULL,
            ct_handle TEXT NOT NULL,
            public_total_amount INTEGER,
            public_member_count INTEGER,
            description TEXT,
            creator TEXT,
            creation_time INTEGER,
            decrypted_amount INTEGER NOT NULL DEFAULT 0,
            is_verified INTEGER NOT NULL DEFAULT 0,
            FOREIGN KEY(creator) REFERENCES Users(uuid)
        );
    `
}

// table CiphertextGrants
// 记录对密文句柄声明过的访问能力，
// (ct_handle, grantee) 为主键，重复声明幂等；没有删除路径
func CreateCiphertextGrantTable() string {
	return `
		CREATE TABLE IF NOT EXISTS CiphertextGrants (
			ct_handle TEXT NOT NULL,
			grantee TEXT NOT NULL,
			granted_at INTEGER,
			PRIMARY KEY (ct_handle, grantee)
		);
	`
}

// table Events
// 追加写入的事件表，记录 groupCreated / amountVerified
func CreateEventTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL,
			kind TEXT NOT NULL,
			group_id TEXT NOT NULL,
			payload TEXT,
			timestamp INTEGER
		);
	`
}

// table Users:
// uuid TEXT PRIMARY KEY,
// userName TEXT
func CreateUserTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Users (
			uuid TEXT PRIMARY KEY,
			userName TEXT
		);
	`
}

// table ECDSAPublicKeys
// 创建者的证明验签公钥
func CreateECDSAPublicKeyTable() string {
	return `
		CREATE TABLE IF NOT EXISTS ECDSAPublicKeys (
			uuid TEXT PRIMARY KEY,
			user TEXT NOT NULL REFERENCES Users(uuid),
			publicKey BLOB NOT NULL
		);
	`
}

// table OracleKeys
// 解密预言机的证明签发公钥
func CreateOracleKeyTable() string {
	return `
		CREATE TABLE IF NOT EXISTS OracleKeys (
			uuid TEXT PRIMARY KEY,
			publicKey BLOB NOT NULL,
			registered_at INTEGER
		);
	`
}

// Only used in Client
func CreateECDSAPrivateKeyTable() string {
	return `
		CREATE TABLE IF NOT EXISTS ECDSAPrivateKeys (
			uuid TEXT PRIMARY KEY,
			user TEXT NOT NULL REFERENCES Users(uuid),
			privateKey BLOB NOT NULL
		);
	`
}

// Only used in Client
func CreateCKKSPrivateKeyTable() string {
	return `
		CREATE TABLE IF NOT EXISTS CKKSPrivateKeys (
			uuid TEXT PRIMARY KEY,
			user TEXT NOT NULL REFERENCES Users(uuid),
			privateKey BLOB NOT NULL
		);
	`
}
