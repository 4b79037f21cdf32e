// server.go 包括客户端与服务端交互的接口和函数

package clientlib

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/CamberLoid/Warikan/internal/group"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/oracle"
	"github.com/CamberLoid/Warikan/internal/restfulpayload"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

const (
	DefaultServerURL           string = "http://127.0.0.1:16001"
	GroupCreateEndpoint        string = "/group/create"
	GroupGetEndpoint           string = "/group/get"
	GroupGetAllIDsEndpoint     string = "/group/getAllIds"
	GroupGetCTEndpoint         string = "/group/getEncryptedAmount"
	GroupVerifyEndpoint        string = "/group/verifyDecryption"
	OracleDecryptEndpoint      string = "/oracle/requestDecryption"
	OracleGetPublicKeyEndpoint string = "/oracle/getPublicKey"
	RegisterUserEndpoint       string = "/register/user"
)

var (
	ConfigServerURL string = DefaultServerURL
)

// postJSON 发送 JSON 请求并解码 JSON 应答
// 服务端失败应答里带结构化的 errKind 标签，
// 能还原成哨兵错误的优先还原
func postJSON(endpoint string, payload interface{}) (jsonData map[string]interface{}, err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(ConfigServerURL+endpoint, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	jsonData = make(map[string]interface{})
	if err = json.NewDecoder(resp.Body).Decode(&jsonData); err != nil {
		return nil, err
	}

	if err = CheckIfOK(jsonData); err != nil {
		return nil, err
	}
	return jsonData, nil
}

// CheckIfOK 检查应答状态，失败时尽量还原结构化错误
func CheckIfOK(jsonData map[string]interface{}) error {
	status, _ := jsonData["status"].(string)
	if status == "OK" {
		return nil
	}

	if kind, ok := jsonData["errKind"].(string); ok {
		if e := group.ErrFromKind(kind); e != nil {
			return e
		}
	}
	if msg, ok := jsonData["err"].(string); ok {
		return errors.New(msg)
	}
	return fmt.Errorf("server returned status %q", status)
}

// --- 注册部分 ---

// RegisterUser 将用户的验签公钥注册到服务端
func (u *User) RegisterUser() error {
	if u.UserECDSAKeyChain == nil {
		return errors.New("no ECDSA KeyChain found")
	}

	request := new(restfulpayload.RegisterUserReq)
	request.UUID = u.UserIdentifier
	request.Name = u.UserName
	request.ECDSA_pubkey = base64.RawStdEncoding.EncodeToString(
		key.MarshalECDSAPublicKey(u.UserECDSAKeyChain[0].ECDSAPublicKey))

	_, err := postJSON(RegisterUserEndpoint, request)
	return err
}

// --- 预言机部分 ---

// GetOracleCKKSPublicKey 获取预言机的 CKKS 公钥，
// 份额金额用它加密
func GetOracleCKKSPublicKey() (pk *rlwe.PublicKey, err error) {
	jsonData, err := postJSON(OracleGetPublicKeyEndpoint, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	pkBase64, _ := jsonData["ckks_pubkey"].(string)
	if pkBase64 == "" {
		return nil, errors.New("oracle public key not found in response")
	}
	pkBytes, err := base64.RawStdEncoding.DecodeString(pkBase64)
	if err != nil {
		return nil, err
	}
	return key.UnmarshalCKKSPublicKey(pkBytes)
}

// RequestOracleDecryption 请求预言机对组密文做公共解密
func RequestOracleDecryption(groupID string) (res *oracle.DecryptResult, err error) {
	jsonData, err := postJSON(OracleDecryptEndpoint, restfulpayload.GetGroupReq{GroupID: groupID})
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(jsonData["result"])
	if err != nil {
		return nil, err
	}
	res = new(oracle.DecryptResult)
	if err = json.Unmarshal(raw, res); err != nil {
		return nil, err
	}
	return res, nil
}

// --- 订阅组部分 ---

// CreateGroupOnServer 发起订阅组摄取请求
func CreateGroupOnServer(req *restfulpayload.CreateGroupReq) error {
	_, err := postJSON(GroupCreateEndpoint, req)
	return err
}

// GetGroupFromServer 按标识符获取订阅组
func GetGroupFromServer(groupID string) (g *group.SubscriptionGroup, err error) {
	jsonData, err := postJSON(GroupGetEndpoint, restfulpayload.GetGroupReq{GroupID: groupID})
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(jsonData["group"])
	if err != nil {
		return nil, err
	}
	g = new(group.SubscriptionGroup)
	if err = json.Unmarshal(raw, g); err != nil {
		return nil, err
	}
	return g, nil
}

// GetAllGroupIDsFromServer 获取全部组标识符，按创建顺序
func GetAllGroupIDsFromServer() (ids []string, err error) {
	jsonData, err := postJSON(GroupGetAllIDsEndpoint, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	rawIDs, _ := jsonData["groupIds"].([]interface{})
	ids = make([]string, 0, len(rawIDs))
	for _, v := range rawIDs {
		id, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected group id type %T", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetEncryptedShareAmountFromServer 获取组的密文句柄和密文字节
func GetEncryptedShareAmountFromServer(groupID string) (handle string, ct []byte, err error) {
	jsonData, err := postJSON(GroupGetCTEndpoint, restfulpayload.GetGroupReq{GroupID: groupID})
	if err != nil {
		return "", nil, err
	}

	handle, _ = jsonData["ctHandle"].(string)
	ctBase64, _ := jsonData["ciphertext"].(string)
	if ct, err = base64.RawStdEncoding.DecodeString(ctBase64); err != nil {
		return "", nil, err
	}
	return handle, ct, nil
}

// SubmitVerifyDecryption 提交解密验证请求
func SubmitVerifyDecryption(groupID string, clearValueWord, proof []byte) (amount uint32, err error) {
	req := restfulpayload.VerifyDecryptionReq{
		GroupID:        groupID,
		ClearValueWord: base64.RawStdEncoding.EncodeToString(clearValueWord),
		Proof:          base64.RawStdEncoding.EncodeToString(proof),
	}

	jsonData, err := postJSON(GroupVerifyEndpoint, req)
	if err != nil {
		return 0, err
	}

	amountFloat, _ := jsonData["decryptedAmount"].(float64)
	return uint32(amountFloat), nil
}
