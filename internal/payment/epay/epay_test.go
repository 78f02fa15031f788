package epay

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func configuredDriver(t *testing.T) *EpayDriver {
	t.Helper()
	d := NewEpayDriver()
	err := d.SetConfig(map[string]interface{}{
		"url": "https://pay.example.com",
		"pid": "1001",
		"key": "supersecret",
	})
	assert.NoError(t, err)
	return d
}

func TestSetConfig(t *testing.T) {
	d := configuredDriver(t)
	assert.Equal(t, "https://pay.example.com/submit.php", d.GatewayURL)
	assert.Equal(t, "1001", d.PID)

	// Full submit endpoint is accepted as-is
	d2 := NewEpayDriver()
	assert.NoError(t, d2.SetConfig(map[string]interface{}{
		"url": "https://pay.example.com/submit.php",
		"pid": float64(1001), // JSON numbers decode as float64
		"key": "supersecret",
	}))
	assert.Equal(t, "https://pay.example.com/submit.php", d2.GatewayURL)
	assert.Equal(t, "1001", d2.PID)

	assert.Error(t, NewEpayDriver().SetConfig(map[string]interface{}{"pid": "1", "key": "k"}))
	assert.Error(t, NewEpayDriver().SetConfig(map[string]interface{}{"url": "https://x", "key": "k"}))
	assert.Error(t, NewEpayDriver().SetConfig(map[string]interface{}{"url": "https://x", "pid": "1"}))
}

func TestPayBuildsSignedURL(t *testing.T) {
	d := configuredDriver(t)

	jumpURL, err := d.Pay("order123", 12.5, "https://api.example.com/notify/uuid-1", "https://app.example.com/done", map[string]interface{}{
		"type": "wxpay",
	})
	assert.NoError(t, err)

	parsed, err := url.Parse(jumpURL)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(jumpURL, "https://pay.example.com/submit.php?"))

	q := parsed.Query()
	assert.Equal(t, "order123", q.Get("out_trade_no"))
	assert.Equal(t, "12.50", q.Get("money"))
	assert.Equal(t, "wxpay", q.Get("type"))
	assert.Equal(t, "MD5", q.Get("sign_type"))
	assert.NotEmpty(t, q.Get("sign"))

	// The sign covers every parameter except sign/sign_type
	expected := d.generateSign(map[string]string{
		"pid":          "1001",
		"type":         "wxpay",
		"out_trade_no": "order123",
		"notify_url":   "https://api.example.com/notify/uuid-1",
		"return_url":   "https://app.example.com/done",
		"name":         "Storage credits order123",
		"money":        "12.50",
	})
	assert.Equal(t, expected, q.Get("sign"))
}

func TestNotifyVerifiesSignature(t *testing.T) {
	d := configuredDriver(t)

	params := map[string]string{
		"pid":          "1001",
		"trade_no":     "gateway-555",
		"out_trade_no": "order123",
		"type":         "alipay",
		"money":        "12.50",
		"trade_status": "TRADE_SUCCESS",
	}
	sign := d.generateSign(params)

	notify := make(map[string]interface{}, len(params)+2)
	for k, v := range params {
		notify[k] = v
	}
	notify["sign"] = sign
	notify["sign_type"] = "MD5"

	valid, orderID, externalID, err := d.Notify(notify)
	assert.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, "order123", orderID)
	assert.Equal(t, "gateway-555", externalID)

	// Tampered amount fails verification
	notify["money"] = "999.99"
	valid, _, _, err = d.Notify(notify)
	assert.False(t, valid)
	assert.Error(t, err)
}

func TestGenerateSignSkipsEmptyValues(t *testing.T) {
	d := configuredDriver(t)

	withEmpty := d.generateSign(map[string]string{"a": "1", "b": "", "c": "2"})
	without := d.generateSign(map[string]string{"a": "1", "c": "2"})
	assert.Equal(t, without, withEmpty)
}
