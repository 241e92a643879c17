/*Package newport provides drivers for Newport ESP301 motion controllers and
69907 arc lamp power supplies.

Both speak line-oriented ASCII over a comm.Transport.  Every operation returns
a device.Result and refuses to touch the wire when its guards fail: the port
must be open, the device initialized, and any axis must be one of those
configured.  The HTTP wrappers bind those operations to routes for the
generichttp family of servers.
*/
package newport
