package routes

import (
	"certipanel/controllers/admin"
	"certipanel/controllers/coupon"
	pricingctl "certipanel/controllers/pricing"
	purchasectl "certipanel/controllers/purchase"
	walletctl "certipanel/controllers/wallet"
	"certipanel/middlewares"

	"github.com/gofiber/fiber/v2"
)

func Setup(app *fiber.App) {
	walletroutes := app.Group("/wallet", middlewares.ActorAuth)
	walletroutes.Get("/balance", walletctl.GetBalance)
	walletroutes.Get("/history", walletctl.History)
	walletroutes.Get("/tx/:tx_id", walletctl.TxDetails)
	walletroutes.Post("/transfer", walletctl.Transfer)
	walletroutes.Post("/topup", middlewares.RequireRoot, walletctl.Topup)
	walletroutes.Post("/set-balance", middlewares.RequireRoot, walletctl.SetBalance)
	walletroutes.Post("/deactivate", walletctl.Deactivate)

	pricingroutes := app.Group("/pricing", middlewares.ActorAuth)
	pricingroutes.Post("/base", middlewares.RequireRoot, pricingctl.UpsertBasePrice)
	pricingroutes.Post("/edge", pricingctl.UpsertEdge)
	pricingroutes.Get("/edges", pricingctl.ListEdges)

	purchaseroutes := app.Group("/purchase", middlewares.ActorAuth)
	purchaseroutes.Post("/", purchasectl.Purchase)

	orderroutes := app.Group("/orders", middlewares.ActorAuth)
	orderroutes.Get("/", admin.ListOrders)

	couponroutes := app.Group("/coupons", middlewares.ActorAuth)
	couponroutes.Post("/generate", coupon.Generate)
	couponroutes.Get("/", coupon.List)
	couponroutes.Get("/:code/events", coupon.Events)
	couponroutes.Post("/:code/reserve", coupon.Reserve)
	couponroutes.Post("/:code/unreserve", coupon.Unreserve)
	couponroutes.Post("/:code/use", coupon.MarkUsed)
	couponroutes.Post("/:code/void", coupon.Void)
	couponroutes.Post("/:code/fail", coupon.MarkFailed)

	adminroutes := app.Group("/users", middlewares.ActorAuth)
	adminroutes.Post("/", admin.CreateUser)
	adminroutes.Get("/children", admin.DirectChildren)
	adminroutes.Get("/subtree", admin.Subtree)

	dashroutes := app.Group("/dashboard", middlewares.ActorAuth)
	dashroutes.Get("/", admin.Dashboard)
	dashroutes.Get("/plans", admin.SalesByPlan)
	dashroutes.Get("/children", admin.SalesByChild)
}
