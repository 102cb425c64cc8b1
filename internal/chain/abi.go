package chain

const (
	campaignABI = `[
		{"inputs":[{"name":"campaignId","type":"uint256"}],"name":"getCampaign","outputs":[
			{"name":"softCap","type":"uint256"},
			{"name":"hardCap","type":"uint256"},
			{"name":"ticketAmount","type":"uint256"},
			{"name":"currentAmount","type":"uint256"},
			{"name":"startDate","type":"uint256"},
			{"name":"endDate","type":"uint256"},
			{"name":"status","type":"uint8"},
			{"name":"participantCount","type":"uint256"},
			{"name":"totalBurned","type":"uint256"}
		],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"campaignId","type":"uint256"},{"name":"user","type":"address"}],"name":"getParticipant","outputs":[
			{"name":"stakedAmount","type":"uint256"},
			{"name":"ticketCount","type":"uint256"},
			{"name":"isWinner","type":"bool"}
		],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"campaignId","type":"uint256"},{"name":"amount","type":"uint256"}],"name":"stakeTokens","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"campaignId","type":"uint256"}],"name":"selectWinners","outputs":[],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"campaignId","type":"uint256"}],"name":"burnTokens","outputs":[],"stateMutability":"nonpayable","type":"function"}
	]`

	erc20ABI = `[
		{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
		{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
	]`
)
