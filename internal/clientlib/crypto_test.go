package clientlib_test

import (
	"math"
	"testing"

	"github.com/CamberLoid/Warikan/internal/clientlib"
	"github.com/CamberLoid/Warikan/internal/key"
	"github.com/CamberLoid/Warikan/internal/misc"
	"github.com/CamberLoid/Warikan/internal/serverlib"
	"github.com/CamberLoid/Warikan/internal/users"
)

func makeNewUser(t *testing.T, name string) (user clientlib.User) {
	t.Helper()
	user = clientlib.User{User: *users.NewUserWithUserName(name)}

	ckksKc := key.GenCKKSKeyChain()
	user.UserCKKSKeyChain = append(user.UserCKKSKeyChain, ckksKc)

	ecdsaKc, err := key.GenECDSAKeyChain()
	if err != nil {
		t.Fatal(err)
	}
	user.UserECDSAKeyChain = append(user.UserECDSAKeyChain, ecdsaKc)

	return
}

func TestEncryptDecryptAmount(t *testing.T) {
	user := makeNewUser(t, "Alice")

	for _, amount := range []uint32{0, 1, 100, 2599, 10000} {
		ct := clientlib.CKKSEncryptAmount(amount, user.UserCKKSKeyChain[0].CKKSPublicKey)
		decrypted := clientlib.CKKSDecryptAmountFromCT(ct, user.UserCKKSKeyChain[0].CKKSPrivateKey)

		if got := misc.CKKSMsgRound(decrypted); got != uint64(amount) {
			t.Errorf("decrypted amount is not equal to the original amount, got %d, expected %d", got, amount)
		}
	}
}

func TestSignCTProof(t *testing.T) {
	user := makeNewUser(t, "Alice")

	ct := clientlib.CKKSEncryptAmount(100, user.UserCKKSKeyChain[0].CKKSPublicKey)
	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	proof, err := user.SignCTProof(ctBytes, "g1")
	if err != nil {
		t.Fatal(err)
	}

	ok, err := user.VerifySignature(serverlib.CTProofMessage(ctBytes, "g1"), proof)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("func VerifySignature failed")
	}

	// 换一个组标识符，证明不再有效
	ok, err = user.VerifySignature(serverlib.CTProofMessage(ctBytes, "g2"), proof)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("proof verified against wrong group id")
	}
}

// 份额金额来自命令行的 uint，超出 uint32 范围必须报错而不是截断
func TestShareAmountFromUint(t *testing.T) {
	for _, v := range []uint64{0, 100, math.MaxUint32} {
		got, err := clientlib.ShareAmountFromUint(v)
		if err != nil {
			t.Fatalf("ShareAmountFromUint(%d): %v", v, err)
		}
		if uint64(got) != v {
			t.Errorf("ShareAmountFromUint(%d) = %d", v, got)
		}
	}

	if _, err := clientlib.ShareAmountFromUint(math.MaxUint32 + 1); err == nil {
		t.Error("expected out-of-range error, got truncation")
	}
}

func TestSignWithoutKey(t *testing.T) {
	user := clientlib.User{User: *users.NewUser()}

	if _, err := user.SignCTProof([]byte("ct"), "g1"); err == nil {
		t.Error("expected error when signing without a keychain")
	}
}

func BenchmarkEncryptAmount(b *testing.B) {
	kc := key.GenCKKSKeyChain()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		clientlib.CKKSEncryptAmount(100, kc.CKKSPublicKey)
	}
}
