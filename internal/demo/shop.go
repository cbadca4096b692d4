package demo

import (
	"fmt"

	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/model"
)

const (
	AppName    = "shop"
	CartClass  = "com.acme.shop.Cart"
	ProxyClass = "com.acme.shop.Cart$$Proxy"
	StockClass = "com.acme.shop.Inventory"
)

// Catalog prices in cents.
var Catalog = map[string]int{
	"apple":  120,
	"bread":  340,
	"cheese": 890,
	"coffee": 1250,
}

// Shop is the sample application running in its own loading scope.
type Shop struct {
	Loader    *jvm.Loader
	Cart      *jvm.Class
	CartProxy *jvm.Class
	Inventory *jvm.Class
}

func intField(o *jvm.Object, name string) int {
	v, _ := o.Get(name)
	n, _ := v.(int)
	return n
}

// DefineShop defines the application classes in loader.
func DefineShop(loader *jvm.Loader) (*Shop, error) {
	pub := model.AccPublic

	inventory, err := loader.Define(jvm.ClassDef{
		Name:      StockClass,
		Modifiers: pub,
		Methods: []jvm.MethodDef{{
			Name: "reserve", Modifiers: pub | model.AccStatic, Descriptor: "(Ljava/lang/String;I)Z",
			ParamNames: []string{"sku", "quantity"},
			Body: func(_ *jvm.Object, args []any) (any, error) {
				return args[1].(int) <= 20, nil
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", StockClass, err)
	}

	cart, err := loader.Define(jvm.ClassDef{
		Name:      CartClass,
		Modifiers: pub,
		Methods: []jvm.MethodDef{
			{
				Name: "<init>", Modifiers: pub, Descriptor: "()V",
				Body: func(this *jvm.Object, _ []any) (any, error) {
					this.Set("items", 0)
					this.Set("total", 0)
					return nil, nil
				},
			},
			{
				Name: "addItem", Modifiers: pub, Descriptor: "(Ljava/lang/String;I)I",
				ParamNames: []string{"sku", "quantity"},
				Body: func(this *jvm.Object, args []any) (any, error) {
					sku, qty := args[0].(string), args[1].(int)
					price, ok := Catalog[sku]
					if !ok {
						return nil, jvm.Throw("java.lang.IllegalArgumentException", "unknown sku "+sku)
					}
					if qty <= 0 {
						return nil, jvm.Throw("java.lang.IllegalArgumentException", fmt.Sprintf("quantity %d", qty))
					}
					reserved, err := inventory.MethodByName("reserve").Invoke(nil, sku, qty)
					if err != nil {
						return nil, err
					}
					if !reserved.(bool) {
						return nil, jvm.Throw("java.lang.IllegalStateException", fmt.Sprintf("out of stock: %d x %s", qty, sku))
					}
					items := intField(this, "items") + qty
					this.Set("items", items)
					this.Set("total", intField(this, "total")+price*qty)
					return items, nil
				},
			},
			{
				Name: "total", Modifiers: pub, Descriptor: "()I",
				Body: func(this *jvm.Object, _ []any) (any, error) {
					return intField(this, "total"), nil
				},
			},
			{
				Name: "checkout", Modifiers: pub, Descriptor: "()Z",
				Body: func(this *jvm.Object, _ []any) (any, error) {
					if intField(this, "items") == 0 {
						return nil, jvm.Throw("java.lang.IllegalStateException", "empty cart")
					}
					this.Set("items", 0)
					this.Set("total", 0)
					return true, nil
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", CartClass, err)
	}

	proxy, err := loader.Define(jvm.ClassDef{
		Name:      ProxyClass,
		Modifiers: pub | model.AccFinal,
		Super:     CartClass,
		Methods: []jvm.MethodDef{
			{
				Name: "<init>", Modifiers: pub, Descriptor: "(Lcom/acme/shop/Cart;)V",
				Body: func(this *jvm.Object, args []any) (any, error) {
					this.Set("target", args[0])
					return nil, nil
				},
			},
			{
				Name: "total", Modifiers: pub, Descriptor: "()I",
				Body: func(this *jvm.Object, _ []any) (any, error) {
					target, _ := this.Get("target")
					return cart.MethodByName("total").Invoke(target.(*jvm.Object))
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("define %s: %w", ProxyClass, err)
	}

	return &Shop{Loader: loader, Cart: cart, CartProxy: proxy, Inventory: inventory}, nil
}
