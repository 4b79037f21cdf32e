package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/CamberLoid/Warikan/internal/db"
	"github.com/CamberLoid/Warikan/internal/group"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/restfulpayload"
	"github.com/CamberLoid/Warikan/internal/serverlib"
	"github.com/CamberLoid/Warikan/internal/users"
	"github.com/google/uuid"
)

func HandleNotFound(w http.ResponseWriter, req *http.Request) {
	returnFailure(w, req, fmt.Errorf("function not found: "+req.RequestURI), 404)
}

// Generic failure
// 除错误信息文本外同时携带结构化的 errKind 标签，
// 客户端凭标签还原哨兵错误
func returnFailure(w http.ResponseWriter, req *http.Request, err error, statusCode int) {
	resp := make(map[string]interface{})
	resp["status"] = "failed"
	resp["err"] = err.Error()
	if kind := group.ErrKind(err); kind != "" {
		resp["errKind"] = kind
	}

	respJSON, _ := json.Marshal(resp)

	w.WriteHeader(statusCode)
	w.Write(respJSON)
	ErrorLogger.Println("Error: " + err.Error())
}

// statusFromErr 把哨兵错误映射到 HTTP 状态码
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, group.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, group.ErrGroupAlreadyExists),
		errors.Is(err, group.ErrAlreadyVerified):
		return http.StatusConflict
	case errors.Is(err, group.ErrInvalidCiphertext),
		errors.Is(err, group.ErrSignatureInvalid),
		errors.Is(err, group.ErrCreatorKeyNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, group.ErrMalformedClearValue),
		errors.Is(err, group.ErrInvalidGroupMetadata):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func returnOK(w http.ResponseWriter, respData map[string]interface{}) {
	respData["status"] = "OK"
	respJSON, err := json.Marshal(respData)
	if err != nil {
		ErrorLogger.Println("Error: " + err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(200)
	w.Write(respJSON)
}

// Handle /version request
func HandlerVersion(w http.ResponseWriter, req *http.Request) {
	returnOK(w, map[string]interface{}{"version": ConfigVersion})
}

// Handle /group/create request
// 摄取一个新的订阅组：解码、验证密文和证明、写入、声明访问能力
func HandlerGroupCreate(w http.ResponseWriter, req *http.Request) {
	InfoLogger.Print("New incoming /group/create request")
	var err error

	request := new(restfulpayload.CreateGroupReq)
	if err = json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, req, err, http.StatusBadRequest)
		return
	}

	ctBytes, err := base64.RawStdEncoding.DecodeString(request.Ciphertext)
	if err != nil {
		returnFailure(w, req, group.ErrInvalidCiphertext, http.StatusBadRequest)
		return
	}
	proof, err := base64.RawStdEncoding.DecodeString(request.Proof)
	if err != nil {
		returnFailure(w, req, group.ErrInvalidCiphertext, http.StatusBadRequest)
		return
	}

	g := &group.SubscriptionGroup{
		GroupID:           request.GroupID,
		DisplayName:       request.DisplayName,
		EncryptedAmount:   ctBytes,
		PublicTotalAmount: request.PublicTotalAmount,
		PublicMemberCount: request.PublicMemberCount,
		Description:       request.Description,
		Creator:           request.Creator,
	}

	if err = serverlib.CreateGroup(Database, g, proof); err != nil {
		returnFailure(w, req, err, statusFromErr(err))
		return
	}

	returnOK(w, map[string]interface{}{"group": *g})
	InfoLogger.Printf("Proceeded /group/create request, groupId = %s, creator = %s",
		g.GroupID, g.Creator.String())
}

// Handle /group/get request
func HandlerGroupGet(w http.ResponseWriter, req *http.Request) {
	request := new(restfulpayload.GetGroupReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, req, err, http.StatusBadRequest)
		return
	}

	g, err := db.GetGroup(Database, request.GroupID)
	if err != nil {
		returnFailure(w, req, err, statusFromErr(err))
		return
	}

	returnOK(w, map[string]interface{}{"group": *g})
}

// Handle /group/getAllIds request
// 返回全部组标识符，按创建顺序。不做过滤和分页
func HandlerGroupGetAllIDs(w http.ResponseWriter, req *http.Request) {
	ids, err := db.GetAllGroupIDs(Database)
	if err != nil {
		returnFailure(w, req, err, http.StatusInternalServerError)
		return
	}

	returnOK(w, map[string]interface{}{"groupIds": ids})
}

// Handle /group/getEncryptedAmount request
// 返回组的密文句柄和密文本体
func HandlerGroupGetEncryptedAmount(w http.ResponseWriter, req *http.Request) {
	request := new(restfulpayload.GetGroupReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, req, err, http.StatusBadRequest)
		return
	}

	handle, ct, err := db.GetGroupCiphertext(Database, request.GroupID)
	if err != nil {
		returnFailure(w, req, err, statusFromErr(err))
		return
	}

	returnOK(w, map[string]interface{}{
		"ctHandle":   handle,
		"ciphertext": base64.RawStdEncoding.EncodeToString(ct),
	})
}

// Handle /group/verifyDecryption request
// 解密验证协议入口：验证预言机证明并一次性提交明文金额
func HandlerGroupVerifyDecryption(w http.ResponseWriter, req *http.Request) {
	InfoLogger.Print("New incoming /group/verifyDecryption request")

	request := new(restfulpayload.VerifyDecryptionReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, req, err, http.StatusBadRequest)
		return
	}

	word, err := base64.RawStdEncoding.DecodeString(request.ClearValueWord)
	if err != nil {
		returnFailure(w, req, group.ErrMalformedClearValue, http.StatusBadRequest)
		return
	}
	proof, err := base64.RawStdEncoding.DecodeString(request.Proof)
	if err != nil {
		returnFailure(w, req, group.ErrSignatureInvalid, http.StatusBadRequest)
		return
	}

	amount, err := serverlib.VerifyDecryptedAmount(Database, request.GroupID, word, proof)
	if err != nil {
		returnFailure(w, req, err, statusFromErr(err))
		return
	}

	returnOK(w, map[string]interface{}{
		"groupId":         request.GroupID,
		"decryptedAmount": amount,
	})
	InfoLogger.Printf("Proceeded /group/verifyDecryption, groupId = %s, amount = %d",
		request.GroupID, amount)
}

// --- 预言机部分 ---

// Handle /oracle/requestDecryption request
// 离链解密流程的入口。应答里带结构化的 alreadyVerified 信号
func HandlerOracleRequestDecryption(w http.ResponseWriter, req *http.Request) {
	InfoLogger.Print("New incoming /oracle/requestDecryption request")

	request := new(restfulpayload.GetGroupReq)
	if err := json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, req, err, http.StatusBadRequest)
		return
	}

	res, err := DecryptionOracle.RequestPublicDecryption(request.GroupID)
	if err != nil {
		returnFailure(w, req, err, statusFromErr(err))
		return
	}

	returnOK(w, map[string]interface{}{"result": *res})
}

// Handle /oracle/getPublicKey request
func HandlerOracleGetPublicKey(w http.ResponseWriter, req *http.Request) {
	pkBytes, err := DecryptionOracle.CKKSPublicKey().MarshalBinary()
	if err != nil {
		returnFailure(w, req, err, http.StatusInternalServerError)
		return
	}

	returnOK(w, map[string]interface{}{
		"ckks_pubkey": base64.RawStdEncoding.EncodeToString(pkBytes),
	})
}

// --- 注册部分 ---

// Handle /register/user
func HandlerRegisterUser(w http.ResponseWriter, req *http.Request) {
	InfoLogger.Print("Received new /register/user")
	var err error

	request := new(restfulpayload.RegisterUserReq)
	if err = json.NewDecoder(req.Body).Decode(request); err != nil {
		returnFailure(w, req, err, 400)
		return
	}

	// Parse ECDSA Public Key
	ecdsaPubkeyBytes, err := base64.RawStdEncoding.DecodeString(request.ECDSA_pubkey)
	if err != nil {
		returnFailure(w, req,
			fmt.Errorf("ecdsa pubkey parse failed: "+err.Error()), 400)
		return
	}
	ecdsaPubkey, err := key.UnmarshalECDSAPublicKey(ecdsaPubkeyBytes)
	if err != nil {
		returnFailure(w, req,
			fmt.Errorf("ecdsa pubkey parse failed: "+err.Error()), 400)
		return
	}

	// 写入数据库
	usr := users.NewUserWithUserName(request.Name)
	usr.UserIdentifier = request.UUID
	if err = db.PutUserColumn(Database, usr); err != nil {
		returnFailure(w, req, err, http.StatusInternalServerError)
		return
	}
	if err = db.PutECDSAPublicKeyColumn(Database, uuid.New(), usr.UserIdentifier, ecdsaPubkey); err != nil {
		returnFailure(w, req, err, http.StatusInternalServerError)
		return
	}

	returnOK(w, map[string]interface{}{})
	InfoLogger.Print("Processed new /register/user, uuid = " + usr.UserIdentifier.String())
}
