package domain

// Identity клиент, от имени которого выполняется запрос.
type Identity struct {
	ClientID string
	IsAdmin  bool
}

// CanAccessClient разрешает доступ к данным клиента владельцу и администратору.
func (i Identity) CanAccessClient(clientID string) bool {
	return i.IsAdmin || (i.ClientID != "" && i.ClientID == clientID)
}
