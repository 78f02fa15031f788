package payment

// Driver is the interface payment providers implement. The engine only ever
// sees verified (orderID, externalID) pairs out of Notify; crediting happens
// in the purchase service.
type Driver interface {
	// SetConfig sets the provider configuration loaded from PaymentConfig
	SetConfig(config map[string]interface{}) error

	// Pay initiates a payment and returns the gateway jump URL. The notify
	// URL already carries the PaymentConfig UUID in its path.
	Pay(orderID string, amount float64, notifyURL string, returnURL string, params map[string]interface{}) (string, error)

	// Notify verifies callback parameters
	// Returns: isValid, orderID, externalID, error
	Notify(params map[string]interface{}) (bool, string, string, error)
}
