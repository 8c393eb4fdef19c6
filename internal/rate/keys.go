package rate

const (
	loginUserPrefix = "login:user:"
	loginIPPrefix   = "login:ip:"
)

func loginUserKey(username string) string {
	return loginUserPrefix + username
}

func loginIPKey(ip string) string {
	return loginIPPrefix + ip
}
