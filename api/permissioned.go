package api

import (
	"context"
	"reflect"

	"github.com/filecoin-project/go-jsonrpc/auth"
	"golang.org/x/xerrors"

	"github.com/ipfs-force-community/sophon-connector/utils"
)

var defaultPerms = []auth.Permission{utils.PermRead}

// PermissionProxy fills the func fields of out with the methods of in, each
// guarded by the field's perm tag. out points to an Internal struct.
func PermissionProxy(in interface{}, out interface{}) {
	ra := reflect.ValueOf(in)
	rint := reflect.ValueOf(out).Elem()
	for i := 0; i < ra.NumMethod(); i++ {
		methodName := ra.Type().Method(i).Name
		field, exists := rint.Type().FieldByName(methodName)
		if !exists {
			continue
		}

		requiredPerm := field.Tag.Get("perm")
		if requiredPerm == "" {
			panic("missing 'perm' tag on " + field.Name) // ok
		}

		fn := ra.Method(i)
		rint.FieldByName(methodName).Set(reflect.MakeFunc(field.Type, func(args []reflect.Value) (results []reflect.Value) {
			ctx := args[0].Interface().(context.Context)
			if auth.HasPerm(ctx, defaultPerms, auth.Permission(requiredPerm)) {
				return fn.Call(args)
			}

			err := xerrors.Errorf("missing permission to invoke '%s' (need '%s')", methodName, requiredPerm)
			rerr := reflect.ValueOf(&err).Elem()
			if fn.Type().NumOut() == 2 {
				return []reflect.Value{
					reflect.Zero(fn.Type().Out(0)),
					rerr,
				}
			}
			return []reflect.Value{rerr}
		}))
	}
}

// ProxyConnector guards every method of impl into out.
func ProxyConnector(impl *ConnectorAPIImpl, out *ConnectorStruct) {
	PermissionProxy(impl, &out.IConnectorStruct.Internal)
	PermissionProxy(impl, &out.IRelayStruct.Internal)
}
