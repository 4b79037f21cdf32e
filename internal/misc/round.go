package misc

import "math"

// CKKSMsgRound 将 CKKS 解码得到的近似浮点数还原为整数（分）
// CKKS 是近似同态，解码结果带有小量噪声，就近取整即可
func CKKSMsgRound(v float64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(math.Round(v))
}
