package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeChangeEvent(t *testing.T) {
	event, err := decodeChangeEvent([]byte(`{"id":"evt_1","type":"change_confirmed","change_request_id":"ocr_1","order_id":"ord_1","user_id":"user_1","status":"CONFIRMED"}`))

	assert.NoError(t, err)
	assert.Equal(t, "change_confirmed", event.Type)
	assert.Equal(t, "ocr_1", event.ChangeRequestID)
	assert.Equal(t, "ord_1", event.OrderID)
}

func TestDecodeChangeEvent_Malformed(t *testing.T) {
	_, err := decodeChangeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestConsumer_CloseNil(t *testing.T) {
	var c *Consumer
	assert.NoError(t, c.Close())
}
