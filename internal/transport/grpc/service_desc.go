package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const ServiceName = "slotbook.v1.AppointmentsService"

type Appointment struct {
	ID         string                 `json:"id"`
	CustomerID string                 `json:"customer_id"`
	StaffID    string                 `json:"staff_id"`
	ServiceID  string                 `json:"service_id"`
	StartTime  *timestamppb.Timestamp `json:"start_time"`
	EndTime    *timestamppb.Timestamp `json:"end_time"`
	Status     string                 `json:"status"`
	Notes      string                 `json:"notes,omitempty"`
	CreatedAt  *timestamppb.Timestamp `json:"created_at"`
	UpdatedAt  *timestamppb.Timestamp `json:"updated_at"`
}

type CheckAvailabilityRequest struct {
	StaffID   string `json:"staff_id"`
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
}

type CheckAvailabilityResponse struct {
	Date        string                   `json:"date"`
	Slots       []*timestamppb.Timestamp `json:"slots"`
	BookedSlots []*timestamppb.Timestamp `json:"booked_slots"`
}

type ListBusySlotsRequest struct {
	StaffID string `json:"staff_id"`
	Date    string `json:"date"`
}

type ListBusySlotsResponse struct {
	BusySlots []*timestamppb.Timestamp `json:"busy_slots"`
}

type CreateAppointmentRequest struct {
	StaffID   string                 `json:"staff_id"`
	ServiceID string                 `json:"service_id"`
	StartTime *timestamppb.Timestamp `json:"start_time"`
	Notes     string                 `json:"notes,omitempty"`
}

type GetAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type RescheduleAppointmentRequest struct {
	AppointmentID string                 `json:"appointment_id"`
	StartTime     *timestamppb.Timestamp `json:"start_time"`
	StaffID       string                 `json:"staff_id,omitempty"`
	ServiceID     string                 `json:"service_id,omitempty"`
}

type CancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type AppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type AppointmentsServiceServer interface {
	CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest) (*CheckAvailabilityResponse, error)
	ListBusySlots(ctx context.Context, req *ListBusySlotsRequest) (*ListBusySlotsResponse, error)
	CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*AppointmentResponse, error)
	GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*AppointmentResponse, error)
	RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest) (*AppointmentResponse, error)
	CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*AppointmentResponse, error)
}

var AppointmentsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AppointmentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: unaryHandler("CheckAvailability", AppointmentsServiceServer.CheckAvailability)},
		{MethodName: "ListBusySlots", Handler: unaryHandler("ListBusySlots", AppointmentsServiceServer.ListBusySlots)},
		{MethodName: "CreateAppointment", Handler: unaryHandler("CreateAppointment", AppointmentsServiceServer.CreateAppointment)},
		{MethodName: "GetAppointment", Handler: unaryHandler("GetAppointment", AppointmentsServiceServer.GetAppointment)},
		{MethodName: "RescheduleAppointment", Handler: unaryHandler("RescheduleAppointment", AppointmentsServiceServer.RescheduleAppointment)},
		{MethodName: "CancelAppointment", Handler: unaryHandler("CancelAppointment", AppointmentsServiceServer.CancelAppointment)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slotbook/v1/appointments",
}

func RegisterAppointmentsServiceServer(s grpc.ServiceRegistrar, srv AppointmentsServiceServer) {
	s.RegisterService(&AppointmentsServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(AppointmentsServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AppointmentsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AppointmentsServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AppointmentsClient calls the service over the JSON codec.
type AppointmentsClient struct {
	cc grpc.ClientConnInterface
}

func NewAppointmentsClient(cc grpc.ClientConnInterface) *AppointmentsClient {
	return &AppointmentsClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AppointmentsClient) CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest, opts ...grpc.CallOption) (*CheckAvailabilityResponse, error) {
	return invoke[CheckAvailabilityResponse](ctx, c.cc, "CheckAvailability", req, opts)
}

func (c *AppointmentsClient) ListBusySlots(ctx context.Context, req *ListBusySlotsRequest, opts ...grpc.CallOption) (*ListBusySlotsResponse, error) {
	return invoke[ListBusySlotsResponse](ctx, c.cc, "ListBusySlots", req, opts)
}

func (c *AppointmentsClient) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "CreateAppointment", req, opts)
}

func (c *AppointmentsClient) GetAppointment(ctx context.Context, req *GetAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "GetAppointment", req, opts)
}

func (c *AppointmentsClient) RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "RescheduleAppointment", req, opts)
}

func (c *AppointmentsClient) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c.cc, "CancelAppointment", req, opts)
}
