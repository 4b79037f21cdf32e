package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/CamberLoid/Warikan/internal/db"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/oracle"
)

var (
	CriticalLogger log.Logger
	ErrorLogger    log.Logger
	WarningLogger  log.Logger
	InfoLogger     log.Logger
	DebugLogger    log.Logger
)

var (
	Database *sql.DB

	// 演示部署中预言机与注册表跑在同一个进程里，
	// 注册表对它的信任仍然只经过登记的验签公钥
	DecryptionOracle *oracle.Oracle
)

const (
	DefaultListenPort = "16001"
	DefaultVersion    = "indev"
	DefaultListenAddr = "127.0.0.1"
)

var (
	ConfigListenAddr = DefaultListenAddr
	ConfigListenPort = DefaultListenPort
	ConfigVersion    = DefaultVersion
)

func loggerInit() {
	CriticalLogger = *log.New(os.Stderr, "CRITICAL: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = *log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarningLogger = *log.New(os.Stderr, "WARNING: ", log.Ldate|log.Ltime|log.Lshortfile)
	InfoLogger = *log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = *log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// oracleInit 生成预言机密钥链并把验签公钥登记进注册表
func oracleInit() (err error) {
	kc, err := key.GenKeyChain()
	if err != nil {
		return err
	}
	DecryptionOracle = oracle.NewOracle(Database, kc)

	return db.PutOracleKeyColumn(Database,
		kc.ECDSAKeyChain.Identifier, DecryptionOracle.AttestationPublicKey())
}

func main() {
	var err error
	loggerInit()

	InfoLogger.Printf("Project Warikan Server Version %s", ConfigVersion)

	http.HandleFunc("/", HandleNotFound)
	http.HandleFunc("/version", HandlerVersion)

	// 订阅组部分
	http.HandleFunc("/group/create", HandlerGroupCreate)
	http.HandleFunc("/group/get", HandlerGroupGet)
	http.HandleFunc("/group/getAllIds", HandlerGroupGetAllIDs)
	http.HandleFunc("/group/getEncryptedAmount", HandlerGroupGetEncryptedAmount)
	http.HandleFunc("/group/verifyDecryption", HandlerGroupVerifyDecryption)

	// 预言机部分
	http.HandleFunc("/oracle/requestDecryption", HandlerOracleRequestDecryption)
	http.HandleFunc("/oracle/getPublicKey", HandlerOracleGetPublicKey)

	http.HandleFunc("/register/user", HandlerRegisterUser)

	if Database, err = InitDatabase(); err != nil {
		CriticalLogger.Fatal(err.Error())
	}

	defer Database.Close()

	if err = oracleInit(); err != nil {
		CriticalLogger.Fatal(err.Error())
	}

	InfoLogger.Printf("Listening: %v", ConfigListenAddr+":"+ConfigListenPort)
	if err := http.ListenAndServe(ConfigListenAddr+":"+ConfigListenPort, nil); err != nil {
		log.Fatal(err)
	}
}
