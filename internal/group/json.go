package group

import "encoding/json"

func (g SubscriptionGroup) MarshalToJSON() (res []byte, err error) {
	return json.Marshal(g)
}
