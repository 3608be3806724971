package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appdevice "dropcode/internal/application/device"
	"dropcode/internal/domain/device"
	"dropcode/internal/shared/logger"
	"dropcode/internal/shared/utils"
)

// DeviceHandler serves the administrative device pool operations.
type DeviceHandler struct {
	deviceRepo device.Repository
	allocator  *appdevice.Allocator
	logger     logger.Interface
}

func NewDeviceHandler(deviceRepo device.Repository, allocator *appdevice.Allocator, log logger.Interface) *DeviceHandler {
	return &DeviceHandler{
		deviceRepo: deviceRepo,
		allocator:  allocator,
		logger:     log,
	}
}

type DeviceResponse struct {
	ID               uint       `json:"id"`
	Provider         string     `json:"provider"`
	ProviderDeviceID string     `json:"provider_device_id"`
	Name             string     `json:"name"`
	CourierName      string     `json:"courier_name"`
	LockerCode       string     `json:"locker_code"`
	Status           string     `json:"status"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
}

func deviceResponse(d *device.Device) DeviceResponse {
	return DeviceResponse{
		ID:               d.ID(),
		Provider:         d.Provider(),
		ProviderDeviceID: d.ProviderDeviceID(),
		Name:             d.Name(),
		CourierName:      d.CourierName(),
		LockerCode:       d.LockerCode(),
		Status:           d.Status().String(),
		LastUsedAt:       d.LastUsedAt(),
	}
}

// ListDevices returns the pool, paginated.
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	page, pageSize := paginationParams(c)

	devices, total, err := h.deviceRepo.List(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Errorw("failed to list devices", "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to list devices")
		return
	}

	resp := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, deviceResponse(d))
	}
	utils.ListSuccessResponse(c, resp, total, page, pageSize)
}

type CreateDeviceRequest struct {
	Provider         string `json:"provider" binding:"required"`
	ProviderDeviceID string `json:"provider_device_id" binding:"required"`
	Name             string `json:"name"`
	CourierName      string `json:"courier_name"`
	LockerCode       string `json:"locker_code"`
}

// CreateDevice registers a pool device by provider reference.
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	d, err := device.NewDevice(req.Provider, req.ProviderDeviceID, req.Name)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.CourierName != "" || req.LockerCode != "" {
		d.SetDeliveryIdentity(req.CourierName, req.LockerCode)
	}

	if err := h.deviceRepo.Create(c.Request.Context(), d); err != nil {
		h.logger.Errorw("failed to create device", "provider", req.Provider, "error", err)
		utils.ErrorResponse(c, http.StatusConflict, "failed to create device")
		return
	}

	utils.CreatedResponse(c, deviceResponse(d))
}

type UpdateDeviceRequest struct {
	Name        *string `json:"name"`
	CourierName *string `json:"courier_name"`
	LockerCode  *string `json:"locker_code"`
	Status      *string `json:"status"`
}

// UpdateDevice applies name, delivery identity, and status changes.
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	deviceID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	d, err := h.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "device not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to load device")
		return
	}

	if req.Name != nil {
		d.Rename(*req.Name)
	}
	if req.CourierName != nil || req.LockerCode != nil {
		courier := d.CourierName()
		locker := d.LockerCode()
		if req.CourierName != nil {
			courier = *req.CourierName
		}
		if req.LockerCode != nil {
			locker = *req.LockerCode
		}
		d.SetDeliveryIdentity(courier, locker)
	}
	if req.Status != nil {
		if err := d.MarkStatus(device.Status(*req.Status)); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.deviceRepo.Update(ctx, d); err != nil {
		h.logger.Errorw("failed to update device", "device_id", deviceID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to update device")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "device updated", deviceResponse(d))
}

// ReleaseDevice force-returns a device to the pool.
func (h *DeviceHandler) ReleaseDevice(c *gin.Context) {
	deviceID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.allocator.Release(c.Request.Context(), deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "device not found")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to release device")
		return
	}
	utils.NoContentResponse(c)
}

// DeleteDevice removes a device from the pool.
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	deviceID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := h.deviceRepo.Delete(c.Request.Context(), deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "device not found")
			return
		}
		h.logger.Errorw("failed to delete device", "device_id", deviceID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to delete device")
		return
	}
	utils.NoContentResponse(c)
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(v), true
}

func paginationParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
