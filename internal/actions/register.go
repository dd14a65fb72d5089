package actions

import (
	"github.com/hearth-home/hearth-core/internal/dispatch"
)

// Handlers bundles the action handlers for dispatcher registration.
type Handlers struct {
	Device *DeviceHandler
	Camera *CameraHandler
	Notify *NotifyHandler
	IPC    *IPCHandler
}

// NewHandlers creates the full handler set on one bus and wait list.
func NewHandlers(bus Bus, media *MediaWaitList) Handlers {
	return Handlers{
		Device: NewDeviceHandler(bus),
		Camera: NewCameraHandler(bus),
		Notify: NewNotifyHandler(bus, media),
		IPC:    NewIPCHandler(bus),
	}
}

// SetLogger sets the logger on every handler in the set.
func (h Handlers) SetLogger(logger Logger) {
	h.Device.SetLogger(logger)
	h.Camera.SetLogger(logger)
	h.Notify.SetLogger(logger)
	h.IPC.SetLogger(logger)
}

// Register wires the handler set into the dispatcher's method table.
func (h Handlers) Register(d *dispatch.Dispatcher) {
	d.RegisterHandler("device.read", h.Device.Read)
	d.RegisterHandler("device.write", h.Device.Write)
	d.RegisterHandler("device.execute", h.Device.Execute)
	d.RegisterHandler("camera.snapshot", h.Camera.Snapshot)
	d.RegisterHandler("camera.clip", h.Camera.Clip)
	d.RegisterHandler("notify.send", h.Notify.Send)
	d.RegisterHandler("ipc.forward", h.IPC.Forward)
}
