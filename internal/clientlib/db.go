package clientlib

import (
	"crypto/ecdsa"
	"crypto/x509"
	"database/sql"
	"os"

	database "github.com/CamberLoid/Warikan/internal/db"
	"github.com/CamberLoid/Warikan/internal/users"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DefaultDatabaseDirPath  string = "/.config/Warikan/"
	DefaultDatabaseFileName string = "client.db"
)

var (
	homedir, _                = os.UserHomeDir()
	ConfigDatabasePath string = homedir + DefaultDatabaseDirPath + DefaultDatabaseFileName
)

func InitDatabase() (db *sql.DB, err error) {
	if _, err = os.Stat(ConfigDatabasePath); os.IsNotExist(err) {
		if ConfigDatabasePath == homedir+DefaultDatabaseDirPath+DefaultDatabaseFileName {
			// 创建这么一个文件夹
			err = os.MkdirAll(homedir+DefaultDatabaseDirPath, 0700)
			if err != nil {
				return nil, err
			}
		} else {
			return nil, err
		}

	}

	return initDatabase(ConfigDatabasePath)
}

func initDatabase(path string) (db *sql.DB, err error) {
	// 初始化数据库对象
	db, err = sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.Exec("PRAGMA foreign_keys = ON;")

	// 建立用户表
	_, err = db.Exec(database.CreateUserTable())
	if err != nil {
		return nil, err
	}

	// 建立密钥表
	_, err = db.Exec(database.CreateECDSAPrivateKeyTable())
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(database.CreateCKKSPrivateKeyTable())
	if err != nil {
		return nil, err
	}

	return
}

// --- 客户端本地的表操作 ---

func putUserColumn(db *sql.DB, u *User) (err error) {
	return database.PutUserColumn(db, &users.User{
		UserIdentifier: u.UserIdentifier,
		UserName:       u.UserName,
	})
}

func putECDSAPrivateKeyColumn(db *sql.DB, keyID, userID uuid.UUID, sk *ecdsa.PrivateKey) (err error) {
	skBytes, err := x509.MarshalECPrivateKey(sk)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO ECDSAPrivateKeys (uuid, user, privateKey)
		VALUES (?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET privateKey = excluded.privateKey;
	`, keyID.String(), userID.String(), skBytes)
	return
}

func getECDSAPrivateKeyByUser(db *sql.DB, userID uuid.UUID) (sk *ecdsa.PrivateKey, keyID uuid.UUID, err error) {
	var (
		skBytes  []byte
		keyIDStr string
	)
	err = db.QueryRow(`
		SELECT uuid, privateKey FROM ECDSAPrivateKeys WHERE user = ?;
	`, userID.String()).Scan(&keyIDStr, &skBytes)
	if err != nil {
		return nil, uuid.Nil, err
	}

	if keyID, err = uuid.Parse(keyIDStr); err != nil {
		return nil, uuid.Nil, err
	}
	sk, err = x509.ParseECPrivateKey(skBytes)
	return
}
