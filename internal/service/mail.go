package service

import "github.com/adiprasetio/marketplace-payments/internal/model"

// mailSubjects selects the outbound mail subject by (target order status,
// locale).  This is the only place locale is consulted; body rendering is
// the mail worker's job.
var mailSubjects = map[model.OrderStatus]map[string]string{
	model.OrderPending: {
		"id": "Pesanan Anda menunggu pembayaran",
		"en": "Your order is awaiting payment",
	},
	model.OrderCompleted: {
		"id": "Pembayaran diterima, pesanan Anda dikonfirmasi",
		"en": "Payment received, your order is confirmed",
	},
	model.OrderCanceled: {
		"id": "Pesanan Anda dibatalkan",
		"en": "Your order has been canceled",
	},
	model.OrderFailure: {
		"id": "Pembayaran pesanan Anda gagal",
		"en": "Payment for your order failed",
	},
}

// mailSubject falls back to English and finally to a generic subject so a
// missing translation never drops a message.
func mailSubject(status model.OrderStatus, locale string) string {
	byLocale, ok := mailSubjects[status]
	if !ok {
		return "Order update"
	}
	if s, ok := byLocale[locale]; ok {
		return s
	}
	if s, ok := byLocale["en"]; ok {
		return s
	}
	return "Order update"
}
