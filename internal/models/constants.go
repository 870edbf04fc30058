package models

// Роли пользователей
const (
	RoleAdmin                   = "admin"
	RoleClient                  = "client"
	RoleFreelancer              = "freelancer"
	RoleServiceProvider         = "service-provider"
	RoleServiceProviderEmployee = "service-provider-employee"
)

// Статусы заявок на услугу
const (
	RequestStatusPaymentPending      = "payment-pending"
	RequestStatusPending             = "pending"
	RequestStatusApproved            = "approved"
	RequestStatusRejected            = "rejected"
	RequestStatusAccepted            = "accepted"
	RequestStatusInProgress          = "inprogress"
	RequestStatusCompletedByProvider = "completed-by-provider"
	RequestStatusCompleted           = "completed"
)

// Статусы платежей
const (
	PaymentStatusPending  = "pending"
	PaymentStatusComplete = "complete"
	PaymentStatusFailed   = "failed"
)

// Типы устройств для push уведомлений
const (
	DeviceTypeIOS     = "ios"
	DeviceTypeAndroid = "android"
	DeviceTypeWeb     = "web"
)

// Города, в которых работает сервис
const (
	CityAbuDhabi     = "Abu Dhabi"
	CityAlAin        = "Al Ain"
	CityAjman        = "Ajman"
	CityDubai        = "Dubai"
	CityFujairah     = "Fujairah"
	CitySharjah      = "Sharjah"
	CityUmmAlQuwain  = "Umm Al Quwain"
	CityRasAlKhaimah = "Ras Al Khaimah"
)

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleAdmin:                   {},
	RoleClient:                  {},
	RoleFreelancer:              {},
	RoleServiceProvider:         {},
	RoleServiceProviderEmployee: {},
}

// SelfRegisterRoles роли, доступные при самостоятельной регистрации
var SelfRegisterRoles = map[string]struct{}{
	RoleClient:     {},
	RoleFreelancer: {},
}

// ValidCities список валидных городов
var ValidCities = map[string]struct{}{
	CityAbuDhabi:     {},
	CityAlAin:        {},
	CityAjman:        {},
	CityDubai:        {},
	CityFujairah:     {},
	CitySharjah:      {},
	CityUmmAlQuwain:  {},
	CityRasAlKhaimah: {},
}

// ValidDeviceTypes список валидных типов устройств
var ValidDeviceTypes = map[string]struct{}{
	DeviceTypeIOS:     {},
	DeviceTypeAndroid: {},
	DeviceTypeWeb:     {},
}
