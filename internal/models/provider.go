package models

// ProviderProfile представляет профиль исполнителя, видимый ядру.
type ProviderProfile struct {
	ID             string   `json:"id"`
	UserID         string   `json:"userId"`
	DisplayName    string   `json:"displayName"`
	City           string   `json:"city"`
	AcceptsUrgent  bool     `json:"acceptsUrgent"`
	SubcategoryIDs []string `json:"subcategoryIds"`
}

// HasSubcategory возвращает true, если исполнитель работает в подкатегории.
func (p *ProviderProfile) HasSubcategory(subcategoryID string) bool {
	for _, id := range p.SubcategoryIDs {
		if id == subcategoryID {
			return true
		}
	}
	return false
}

// Actor представляет действующее лицо: пользователь, его роль и профиль исполнителя.
// Заполняется внешним провайдером идентичности, ядро его только читает.
type Actor struct {
	UserID   string
	IsStaff  bool
	Provider *ProviderProfile // nil, если у пользователя нет профиля исполнителя
}

// IsClientOf возвращает true, если пользователь является владельцем заявки.
func (a *Actor) IsClientOf(r *ServiceRequest) bool {
	return a.UserID != "" && a.UserID == r.ClientID
}

// IsProviderOf возвращает true, если пользователь - закрепленный за заявкой исполнитель.
func (a *Actor) IsProviderOf(r *ServiceRequest) bool {
	return a.Provider != nil && r.ProviderID != nil && a.Provider.ID == *r.ProviderID
}

// IsTargetOf возвращает true, если заявка адресована этому исполнителю.
func (a *Actor) IsTargetOf(r *ServiceRequest) bool {
	return a.Provider != nil && r.TargetProviderID != nil && a.Provider.ID == *r.TargetProviderID
}
