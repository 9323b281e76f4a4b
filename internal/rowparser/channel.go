package rowparser

import (
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Keyword groups used to infer a payment channel from the raw pay-text.
var (
	bankKeywords   = []string{"银行", "储蓄卡", "信用卡", "借记卡", "卡(", "card", "银联"}
	walletKeywords = []string{"零钱", "余额宝", "余额", "花呗", "钱包", "wallet", "红包"}
	cashKeywords   = []string{"现金", "cash"}
)

// InferChannel maps a raw pay-channel/account text onto a payment channel tag
// via keyword lookup.
func InferChannel(payText string) model.PayChannel {
	text := strings.ToLower(strings.TrimSpace(payText))
	if text == "" {
		return model.ChannelUnknown
	}
	for _, kw := range bankKeywords {
		if strings.Contains(text, kw) {
			return model.ChannelBankCard
		}
	}
	for _, kw := range walletKeywords {
		if strings.Contains(text, kw) {
			return model.ChannelWallet
		}
	}
	for _, kw := range cashKeywords {
		if strings.Contains(text, kw) {
			return model.ChannelCash
		}
	}
	return model.ChannelUnknown
}
